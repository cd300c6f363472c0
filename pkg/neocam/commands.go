package neocam

import (
	"context"

	"github.com/nvr-core/bc/pkg/bc"
	"github.com/nvr-core/bc/pkg/login"
	"github.com/nvr-core/bc/pkg/xmlmodel"
)

// GetLedState reads msg_id 208's LedState, supplemented from
// original_source/crates/core/src/bc_protocol/ledstate.rs.
func (n *NeoCam) GetLedState(ctx context.Context) (*xmlmodel.LedState, error) {
	if err := n.requireAbility(ctx, "ledStatus"); err != nil {
		return nil, err
	}
	reply, err := n.getRPC(ctx, bc.MsgIDLedGet, xmlmodel.NewBcXml())
	if err != nil {
		return nil, err
	}
	modern := reply.Body.(bc.ModernBody)
	if modern.XML == nil || modern.XML.LedState == nil {
		return nil, &login.UnintelligibleReply{Reply: "get-led", Why: "no LedState in reply"}
	}
	return modern.XML.LedState, nil
}

// SetLedState pushes a new LedState (msg_id 209).
func (n *NeoCam) SetLedState(ctx context.Context, state *xmlmodel.LedState) error {
	if err := n.requireAbility(ctx, "ledStatus"); err != nil {
		return err
	}
	x := xmlmodel.NewBcXml()
	x.LedState = state
	return n.setRPC(ctx, bc.MsgIDLedSet, x)
}

// GetUsers reads msg_id 58's UserList, supplemented from
// original_source/crates/core/src/bc_protocol/users.rs.
func (n *NeoCam) GetUsers(ctx context.Context) (*xmlmodel.UserList, error) {
	if err := n.requireAbility(ctx, "userManage"); err != nil {
		return nil, err
	}
	reply, err := n.getRPC(ctx, bc.MsgIDUsersGet, xmlmodel.NewBcXml())
	if err != nil {
		return nil, err
	}
	modern := reply.Body.(bc.ModernBody)
	if modern.XML == nil || modern.XML.UserList == nil {
		return nil, &login.UnintelligibleReply{Reply: "get-users", Why: "no UserList in reply"}
	}
	return modern.XML.UserList, nil
}

// SetUsers pushes a replacement UserList (msg_id 59).
func (n *NeoCam) SetUsers(ctx context.Context, users *xmlmodel.UserList) error {
	if err := n.requireAbility(ctx, "userManage"); err != nil {
		return err
	}
	x := xmlmodel.NewBcXml()
	x.UserList = users
	return n.setRPC(ctx, bc.MsgIDUsersSet, x)
}

// GetEmail reads msg_id 42's Email config, supplemented from
// original_source/crates/core/src/bc_protocol/email.rs.
func (n *NeoCam) GetEmail(ctx context.Context) (*xmlmodel.Email, error) {
	if err := n.requireAbility(ctx, "email"); err != nil {
		return nil, err
	}
	reply, err := n.getRPC(ctx, bc.MsgIDEmailGet, xmlmodel.NewBcXml())
	if err != nil {
		return nil, err
	}
	modern := reply.Body.(bc.ModernBody)
	if modern.XML == nil || modern.XML.Email == nil {
		return nil, &login.UnintelligibleReply{Reply: "get-email", Why: "no Email in reply"}
	}
	return modern.XML.Email, nil
}

// SetEmail pushes a replacement Email config (msg_id 43).
func (n *NeoCam) SetEmail(ctx context.Context, email *xmlmodel.Email) error {
	if err := n.requireAbility(ctx, "email"); err != nil {
		return err
	}
	x := xmlmodel.NewBcXml()
	x.Email = email
	return n.setRPC(ctx, bc.MsgIDEmailSet, x)
}

// GetEmailTasks reads msg_id 216's scheduled/test email task list.
func (n *NeoCam) GetEmailTasks(ctx context.Context) (*xmlmodel.EmailTaskList, error) {
	if err := n.requireAbility(ctx, "email"); err != nil {
		return nil, err
	}
	reply, err := n.getRPC(ctx, bc.MsgIDEmailTaskGet, xmlmodel.NewBcXml())
	if err != nil {
		return nil, err
	}
	modern := reply.Body.(bc.ModernBody)
	if modern.XML == nil || modern.XML.EmailTask == nil {
		return nil, &login.UnintelligibleReply{Reply: "get-email-tasks", Why: "no EmailTask in reply"}
	}
	return modern.XML.EmailTask, nil
}

// GetBattery reads msg_id 252's BatteryInfo.
func (n *NeoCam) GetBattery(ctx context.Context) (*xmlmodel.BatteryInfo, error) {
	if err := n.requireAbility(ctx, "batteryInfo"); err != nil {
		return nil, err
	}
	reply, err := n.getRPC(ctx, bc.MsgIDBatteryGet, xmlmodel.NewBcXml())
	if err != nil {
		return nil, err
	}
	modern := reply.Body.(bc.ModernBody)
	if modern.XML == nil || modern.XML.BatteryInfo == nil {
		return nil, &login.UnintelligibleReply{Reply: "get-battery", Why: "no BatteryInfo in reply"}
	}
	return modern.XML.BatteryInfo, nil
}

// GetVersion reads msg_id 80's VersionInfo. Never ability-gated — every
// firmware that speaks BC answers this one.
func (n *NeoCam) GetVersion(ctx context.Context) (*xmlmodel.VersionInfo, error) {
	reply, err := n.getRPC(ctx, bc.MsgIDVersion, xmlmodel.NewBcXml())
	if err != nil {
		return nil, err
	}
	modern := reply.Body.(bc.ModernBody)
	if modern.XML == nil || modern.XML.VersionInfo == nil {
		return nil, &login.UnintelligibleReply{Reply: "get-version", Why: "no VersionInfo in reply"}
	}
	return modern.XML.VersionInfo, nil
}

// GetPirAlarm reads msg_id 212's PIR config, supplemented from
// original_source/src/pir/mod.rs.
func (n *NeoCam) GetPirAlarm(ctx context.Context) (*xmlmodel.PirAlarm, error) {
	if err := n.requireAbility(ctx, "pirStatus"); err != nil {
		return nil, err
	}
	reply, err := n.getRPC(ctx, bc.MsgIDPirGet, xmlmodel.NewBcXml())
	if err != nil {
		return nil, err
	}
	modern := reply.Body.(bc.ModernBody)
	if modern.XML == nil || modern.XML.PirAlarm == nil {
		return nil, &login.UnintelligibleReply{Reply: "get-pir", Why: "no PirAlarm in reply"}
	}
	return modern.XML.PirAlarm, nil
}

// SetPirAlarm pushes a replacement PIR config (msg_id 213).
func (n *NeoCam) SetPirAlarm(ctx context.Context, pir *xmlmodel.PirAlarm) error {
	if err := n.requireAbility(ctx, "pirStatus"); err != nil {
		return err
	}
	x := xmlmodel.NewBcXml()
	x.PirAlarm = pir
	return n.setRPC(ctx, bc.MsgIDPirSet, x)
}

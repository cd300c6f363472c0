// Package xmlmodel defines the typed XML payload records carried inside BC
// messages, and the two envelope types ("BcXml" for payloads, "Extension"
// for the modern-message prelude) that wrap them.
//
// All XML is UTF-8. The envelope is deliberately an open record: every
// field is an optional pointer so any legal combination a firmware sends
// round-trips, and unknown elements are tolerated on deserialize (the Go
// encoding/xml decoder already ignores elements that don't match a struct
// field, matching the teacher stack's tolerance for unknown fields in
// wire-derived structs).
package xmlmodel

import (
	"encoding/xml"
	"time"
)

// DefaultVersion is used for every outgoing payload unless the caller sets
// a different one explicitly.
const DefaultVersion = "1.1"

// BcXml is the envelope for a BC XML payload. Every field is optional so a
// single type can represent any of the known payload shapes; unused fields
// are omitted on serialize via xml:",omitempty" and ignored on
// deserialize when absent.
type BcXml struct {
	XMLName xml.Name `xml:"body"`
	Version string   `xml:"version,attr,omitempty"`

	LoginUser     *LoginUser     `xml:"LoginUser,omitempty"`
	LoginNet      *LoginNet      `xml:"LoginNet,omitempty"`
	Encryption    *Encryption    `xml:"Encryption,omitempty"`
	DeviceInfo    *DeviceInfo    `xml:"DeviceInfo,omitempty"`
	VersionInfo   *VersionInfo   `xml:"VersionInfo,omitempty"`
	Preview       *Preview       `xml:"Preview,omitempty"`
	Email         *Email         `xml:"Email,omitempty"`
	EmailTask     *EmailTaskList `xml:"EmailTask,omitempty"`
	EmailTestInfo *EmailTaskInfo `xml:"EmailTestInfo,omitempty"`
	LedState      *LedState      `xml:"LedState,omitempty"`
	PirAlarm      *PirAlarm      `xml:"AlarmPir,omitempty"`
	UserList      *UserList      `xml:"UserList,omitempty"`
	ServerPort    *ServerPort    `xml:"ServerPort,omitempty"`
	BatteryInfo   *BatteryInfo   `xml:"BatteryInfo,omitempty"`
	AbilityInfo   *AbilityInfo   `xml:"AbilityInfo,omitempty"`
	AlarmEventList *AlarmEventList `xml:"AlarmEventList,omitempty"`
	RfAlarmCfg    *RfAlarmCfg    `xml:"AlarmRf,omitempty"`
	SystemGeneral *SystemGeneral `xml:"SystemGeneral,omitempty"`
	UIDInfo       *UIDInfo       `xml:"UIDInfo,omitempty"`
}

// NewSystemTime builds the SystemGeneral payload CamThread sends to set a
// camera's clock to t in its local zone offset.
func NewSystemTime(t time.Time) *BcXml {
	x := NewBcXml()
	_, offset := t.Zone()
	x.SystemGeneral = &SystemGeneral{
		Version:  DefaultVersion,
		TimeZone: -offset, // firmware convention: west-of-UTC is positive
		Year:     t.Year(),
		Month:    int(t.Month()),
		Day:      t.Day(),
		Hour:     t.Hour(),
		Minute:   t.Minute(),
		Second:   t.Second(),
	}
	return x
}

// NewBcXml returns an envelope with the default version already set.
func NewBcXml() *BcXml {
	return &BcXml{Version: DefaultVersion}
}

// Marshal serializes the envelope as UTF-8 XML with the standard header.
func Marshal(v interface{}) ([]byte, error) {
	body, err := xml.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := append([]byte(xml.Header), body...)
	return out, nil
}

// Unmarshal parses XML bytes into dst, tolerating unknown elements.
func Unmarshal(data []byte, dst interface{}) error {
	if len(data) == 0 {
		return ErrEmptyDocument
	}
	return xml.Unmarshal(data, dst)
}

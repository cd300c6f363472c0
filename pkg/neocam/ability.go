package neocam

import (
	"context"
	"sync"

	"github.com/nvr-core/bc/pkg/bc"
	"github.com/nvr-core/bc/pkg/bcerr"
	"github.com/nvr-core/bc/pkg/xmlmodel"
)

// abilityCache holds the camera's AbilityInfo/Support response (msg_id
// 151/199) after the first command that needs it, so later commands don't
// re-fetch it every time. Grounded on
// original_source/crates/core/src/bc_protocol/services.rs's ability
// gating, which checks a cached token list before issuing a command the
// firmware might not support.
type abilityCache struct {
	mu     sync.Mutex
	loaded bool
	names  map[string]struct{}
}

func newAbilityCache() *abilityCache {
	return &abilityCache{names: make(map[string]struct{})}
}

// require fetches AbilityInfo on first use, then checks name is present.
// fetch is the NeoCam's getRPC, injected so this stays untangled from the
// RPC plumbing above it.
func (a *abilityCache) require(ctx context.Context, name string, fetch func(context.Context) (*bc.Message, error)) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.loaded {
		reply, err := fetch(ctx)
		if err != nil {
			return err
		}
		modern, ok := reply.Body.(bc.ModernBody)
		if ok && modern.XML != nil && modern.XML.AbilityInfo != nil {
			for _, tok := range modern.XML.AbilityInfo.Token {
				a.names[tok.Name] = struct{}{}
			}
		}
		a.loaded = true
	}

	if _, ok := a.names[name]; !ok {
		return &bcerr.AbilityMissing{Name: name}
	}
	return nil
}

// requireAbility checks name against the camera's cached ability list,
// fetching it via msg_id 151 (AbilityInfo) the first time any command
// needs it.
func (n *NeoCam) requireAbility(ctx context.Context, name string) error {
	return n.abilities.require(ctx, name, func(ctx context.Context) (*bc.Message, error) {
		return n.getRPC(ctx, bc.MsgIDAbilityInfo, xmlmodel.NewBcXml())
	})
}

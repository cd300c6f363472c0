// Package config defines the in-memory camera fleet configuration shape
// the Reactor diffs against (spec.md §3's CameraConfig). Loading this from
// a file or schema-validating an external format is explicitly out of
// scope (spec.md §1's Non-goals); this package only carries and validates
// the already-parsed shape.
package config

import (
	"errors"
	"fmt"

	"github.com/nvr-core/bc/pkg/crypto"
	"github.com/nvr-core/bc/pkg/transport"
)

// Discovery selects how CamThread locates a camera before dialing.
type Discovery int

const (
	// DiscoveryStatic dials Addresses directly.
	DiscoveryStatic Discovery = iota
	// DiscoveryMDNS resolves UID via discovery.Resolver first.
	DiscoveryMDNS
)

// CameraConfig mirrors spec.md §3's CameraConfig exactly, plus Enabled for
// the Reactor's fleet diff (spec.md §4.11).
type CameraConfig struct {
	Name      string
	Addresses []string
	UID       string
	Port      int
	Username  string
	Password  string

	Protocol  transport.Protocol
	Discovery Discovery

	Channel int

	// MaxEncryption is the strongest cipher the handshake is allowed to
	// negotiate up to; CamThread ends the session right after login if the
	// camera negotiated a cipher above it.
	MaxEncryption crypto.Protocol

	StrictParsing  bool
	PauseOnMotion  bool
	UpdateTime     bool

	// PushNotifications enables this camera's participation in the
	// Reactor's shared push-notification hub (spec.md §4.11).
	PushNotifications bool

	Enabled bool
}

var (
	ErrEmptyName        = errors.New("config: name is required")
	ErrNoAddress        = errors.New("config: at least one address or a UID is required")
	ErrEncryptionTooLow = errors.New("config: max_encryption must allow at least BCEncrypt")
)

// Validate rejects configs that can never succeed a handshake: no name, no
// way to locate the camera, or an encryption ceiling below what login can
// negotiate (spec.md §4.6 never completes on Unencrypted alone if the
// camera demands BCEncrypt or AES).
func (c *CameraConfig) Validate() error {
	if c.Name == "" {
		return ErrEmptyName
	}
	if len(c.Addresses) == 0 && c.UID == "" {
		return ErrNoAddress
	}
	if c.MaxEncryption < crypto.BCEncrypt {
		return ErrEncryptionTooLow
	}
	return nil
}

// FleetConfig is the externally-loaded, per-run configuration the Reactor
// diffs against: one CameraConfig per camera name.
type FleetConfig struct {
	Cameras map[string]CameraConfig
}

// Validate validates every camera in the fleet, returning the first error
// annotated with the offending name.
func (f *FleetConfig) Validate() error {
	for name, cam := range f.Cameras {
		if err := cam.Validate(); err != nil {
			return fmt.Errorf("config: camera %q: %w", name, err)
		}
	}
	return nil
}

// DiffEnabled computes which camera names were added, removed, or had
// their CameraConfig change between old and new, restricted to cameras
// with Enabled == true in the respective config. The Reactor uses this to
// decide which NeoCams to construct, drop, or reconfigure (spec.md
// §4.11's update_config).
func DiffEnabled(old, new FleetConfig) (added, removed, changed []string) {
	oldEnabled := enabledSet(old)
	newEnabled := enabledSet(new)

	for name := range newEnabled {
		if _, ok := oldEnabled[name]; !ok {
			added = append(added, name)
			continue
		}
		if !cameraEqual(old.Cameras[name], new.Cameras[name]) {
			changed = append(changed, name)
		}
	}
	for name := range oldEnabled {
		if _, ok := newEnabled[name]; !ok {
			removed = append(removed, name)
		}
	}
	return added, removed, changed
}

func enabledSet(f FleetConfig) map[string]struct{} {
	out := make(map[string]struct{}, len(f.Cameras))
	for name, cam := range f.Cameras {
		if cam.Enabled {
			out[name] = struct{}{}
		}
	}
	return out
}

func cameraEqual(a, b CameraConfig) bool {
	if a.Name != b.Name || a.UID != b.UID || a.Port != b.Port ||
		a.Username != b.Username || a.Password != b.Password ||
		a.Protocol != b.Protocol || a.Discovery != b.Discovery ||
		a.Channel != b.Channel || a.MaxEncryption != b.MaxEncryption ||
		a.StrictParsing != b.StrictParsing || a.PauseOnMotion != b.PauseOnMotion ||
		a.UpdateTime != b.UpdateTime || a.PushNotifications != b.PushNotifications ||
		a.Enabled != b.Enabled {
		return false
	}
	if len(a.Addresses) != len(b.Addresses) {
		return false
	}
	for i := range a.Addresses {
		if a.Addresses[i] != b.Addresses[i] {
			return false
		}
	}
	return true
}

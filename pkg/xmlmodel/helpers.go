package xmlmodel

// FindEncryption extracts the Encryption record from a login reply,
// returning ErrNoEncryptionRecord if absent (spec.md's UnintelligibleReply
// case: the caller wraps this into that taxonomy member).
func FindEncryption(x *BcXml) (*Encryption, error) {
	if x == nil || x.Encryption == nil {
		return nil, ErrNoEncryptionRecord
	}
	return x.Encryption, nil
}

// NewLoginUser builds the modern-login payload envelope.
func NewLoginUser(username, password string) *BcXml {
	x := NewBcXml()
	x.LoginUser = &LoginUser{Version: DefaultVersion, UserName: username, Password: password}
	x.LoginNet = &LoginNet{Version: DefaultVersion, Type: "LAN"}
	return x
}

// MotionState classifies one AlarmEvent's status string.
type MotionState int

const (
	MotionUnknown MotionState = iota
	MotionStart
	MotionStop
)

// Classify maps the firmware's free-form status string to a MotionState.
func (e AlarmEvent) Classify() MotionState {
	switch e.Status {
	case "MD", "md", "start", "Start":
		return MotionStart
	case "none", "None", "stop", "Stop":
		return MotionStop
	default:
		return MotionUnknown
	}
}

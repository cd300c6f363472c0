package bc

// Well-known msg_id values (spec.md §6). Not exhaustive — firmwares define
// many more — but these are the ones the core and its typed command
// helpers must recognize.
const (
	MsgIDLogin              = 1
	MsgIDLogout             = 2
	MsgIDVideoStart         = 3
	MsgIDVideoStop          = 4
	MsgIDTalkAbility        = 10
	MsgIDPtzControl         = 18
	MsgIDPtzPatrol          = 19
	MsgIDReboot             = 23
	MsgIDMotionRequest      = 31
	MsgIDMotionReport       = 33
	MsgIDServicePortsGet    = 36
	MsgIDServicePortsSet    = 37
	MsgIDEmailGet           = 42
	MsgIDEmailSet           = 43
	MsgIDUsersGet           = 58
	MsgIDUsersSet           = 59
	MsgIDVersion            = 80
	MsgIDPing               = 93
	MsgIDGeneralGet         = 104
	MsgIDGeneralSet         = 105
	MsgIDSnap               = 109
	MsgIDUID                = 114
	MsgIDPushInfo           = 124
	MsgIDTestEmail          = 141
	MsgIDStreamInfoList     = 146
	MsgIDAbilityInfo        = 151
	MsgIDPtzPresets         = 190
	MsgIDSupport            = 199
	MsgIDTalkConfig         = 201
	MsgIDTalkStream         = 202
	MsgIDLedGet             = 208
	MsgIDLedSet             = 209
	MsgIDPirGet             = 212
	MsgIDPirSet             = 213
	MsgIDEmailTaskGet       = 216
	MsgIDEmailTaskSet       = 217
	MsgIDUDPKeepAlive       = 234
	MsgIDBatteryGet         = 252
	MsgIDBatterySet         = 253
	MsgIDPlayAudio          = 263
	MsgIDFloodlightGet      = 288
	MsgIDFloodlightSet      = 290
	MsgIDFloodlightStatus   = 291
	MsgIDZoom               = 294
	MsgIDFocus              = 295
	MsgIDFloodlightTasksGet = 438
)

// ResponseCode is the 16-bit status field carried in every reply.
type ResponseCode uint16

const (
	// ResponseOK is the normal success code.
	ResponseOK ResponseCode = 200
	// ResponseBadRequest is a transient/bad-request code; get_* RPCs retry
	// on this per spec.md §5.
	ResponseBadRequest ResponseCode = 400
)

// encryptionNegotiationHighByte marks a login response (msg_id 1) that is
// announcing the required cipher rather than carrying login success/failure.
const encryptionNegotiationHighByte = 0xdd

// IsEncryptionNegotiation reports whether a response_code on msg_id 1
// announces the required cipher (high byte 0xdd) per spec.md §4.2 rule 1.
func (r ResponseCode) IsEncryptionNegotiation() bool {
	return (uint16(r)>>8)&0xff == encryptionNegotiationHighByte
}

// LowByte returns the low 8 bits, which for an encryption-negotiation
// response_code select Unencrypted (0x00) vs BCEncrypt (any non-zero).
func (r ResponseCode) LowByte() byte {
	return byte(uint16(r) & 0xff)
}

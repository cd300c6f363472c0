package xmlmodel

// LoginUser carries the modern-login credentials (msg_id 1, post-handshake).
type LoginUser struct {
	Version  string `xml:"version,attr,omitempty"`
	UserName string `xml:"userName"`
	Password string `xml:"password"`
	UserVer  int    `xml:"userVer,omitempty"`
}

// LoginNet describes the client's network role during login.
type LoginNet struct {
	Version    string `xml:"version,attr,omitempty"`
	Type       string `xml:"type,omitempty"`
	UDPPort    int    `xml:"udpPort,omitempty"`
}

// Encryption is returned by the camera during login to announce the
// required cipher. The cipher itself is signalled by the message's
// response_code, not by this record; Nonce is only present when AES
// (0xdd03) is required.
type Encryption struct {
	Version string `xml:"version,attr,omitempty"`
	Nonce   string `xml:"nonce,omitempty"`
}

// DeviceInfo is a grab-bag of identity fields some firmwares return
// alongside VersionInfo.
type DeviceInfo struct {
	Version      string `xml:"version,attr,omitempty"`
	FirmwareVer  string `xml:"firmwareVersion,omitempty"`
	DeviceType   string `xml:"deviceType,omitempty"`
	SerialNumber string `xml:"serialNumber,omitempty"`
}

// VersionInfo answers msg_id 80 (get version).
type VersionInfo struct {
	Version        string `xml:"version,attr,omitempty"`
	Name           string `xml:"name,omitempty"`
	SerialNumber   string `xml:"serialNumber,omitempty"`
	BuildDay       string `xml:"buildDay,omitempty"`
	HardwareVer    string `xml:"hardwareVersion,omitempty"`
	CfgVer         string `xml:"cfgVersion,omitempty"`
	FirmwareVer    string `xml:"firmwareVersion,omitempty"`
	DetailMachineType string `xml:"detailMachineType,omitempty"`
}

// Preview requests or describes a video-start/video-stop (msg_id 3/4).
type Preview struct {
	Version   string `xml:"version,attr,omitempty"`
	Channel   int    `xml:"channelId"`
	Handle    int    `xml:"handle"`
	StreamType string `xml:"streamType,omitempty"`
}

// Email describes SMTP configuration (msg_id 42/43).
type Email struct {
	Version     string `xml:"version,attr,omitempty"`
	Enable      int    `xml:"enable,omitempty"`
	SmtpServer  string `xml:"smtpServer,omitempty"`
	SmtpPort    int    `xml:"smtpPort,omitempty"`
	UserName    string `xml:"userName,omitempty"`
	Password    string `xml:"password,omitempty"`
	Ssl         int    `xml:"ssl,omitempty"`
	Addr1       string `xml:"address1,omitempty"`
}

// EmailTaskInfo is one scheduled or test email task.
type EmailTaskInfo struct {
	Version    string `xml:"version,attr,omitempty"`
	ID         int    `xml:"id,omitempty"`
	Enable     int    `xml:"enable,omitempty"`
	Schedule   string `xml:"schedule,omitempty"`
}

// EmailTaskList is the response to msg_id 216/217 (get/set email tasks).
type EmailTaskList struct {
	Version string          `xml:"version,attr,omitempty"`
	Tasks   []EmailTaskInfo `xml:"EmailTaskInfo,omitempty"`
}

// LedState answers msg_id 208/209 (get/set LED state).
type LedState struct {
	Version string `xml:"version,attr,omitempty"`
	Channel int    `xml:"channel,omitempty"`
	LedVersion string `xml:"ledVersion,omitempty"`
	State   string `xml:"state,omitempty"` // "open" | "close"
}

// PirAlarm answers msg_id 212/213 (get/set PIR state), supplemented from
// original_source/src/pir/mod.rs.
type PirAlarm struct {
	Version      string `xml:"version,attr,omitempty"`
	Enable       int    `xml:"enable,omitempty"`
	Sensitivity  int    `xml:"sensitivity,omitempty"`
	SensValue    int    `xml:"sensValue,omitempty"`
}

// UserInfo is one entry in UserList (msg_id 58/59).
type UserInfo struct {
	UserName string `xml:"userName"`
	Level    string `xml:"level,omitempty"`
}

// UserList answers msg_id 58/59 (get/add/del users), supplemented from
// original_source/crates/core/src/bc_protocol/users.rs.
type UserList struct {
	Version string     `xml:"version,attr,omitempty"`
	Users   []UserInfo `xml:"userInfo,omitempty"`
}

// NetPort is one {enable, port} pair shared by every protocol port entry.
type NetPort struct {
	Enable int `xml:"enable"`
	Port   int `xml:"port"`
}

// ServerPort answers msg_id 36/37 (get/set service ports). It names five
// ports; any other port element a firmware sends is ignored on decode and
// is not written back on encode.
type ServerPort struct {
	Version   string   `xml:"version,attr,omitempty"`
	HTTPPort  *NetPort `xml:"httpPort,omitempty"`
	HTTPSPort *NetPort `xml:"httpsPort,omitempty"`
	RTSPPort  *NetPort `xml:"rtspPort,omitempty"`
	RTMPPort  *NetPort `xml:"rtmpPort,omitempty"`
	OnvifPort *NetPort `xml:"onvifPort,omitempty"`
}

// BatteryInfo answers msg_id 252/253.
type BatteryInfo struct {
	Version        string `xml:"version,attr,omitempty"`
	ChannelID      int    `xml:"channelId,omitempty"`
	BatteryPercent int    `xml:"batteryPercent"`
	BatteryVersion int    `xml:"batteryVersion,omitempty"`
	LowPower       int    `xml:"lowPower,omitempty"`
	Charging       int    `xml:"chargeStatus,omitempty"`
	Temperature    int    `xml:"temperature,omitempty"`
}

// AbilityInfo answers msg_id 151/199 (ability-info / support) and is used
// by the ability-gating feature supplemented from
// original_source/crates/core/src/bc_protocol/services.rs.
type AbilityInfo struct {
	Version string           `xml:"version,attr,omitempty"`
	Token   []AbilityToken   `xml:"token,omitempty"`
}

// AbilityToken names one supported ability and its permission level.
type AbilityToken struct {
	Name string `xml:"name,attr"`
	Ver  string `xml:"ver,attr,omitempty"`
}

// AlarmEventList carries motion/event notifications (msg_id 31/33).
type AlarmEventList struct {
	Version string       `xml:"version,attr,omitempty"`
	Events  []AlarmEvent `xml:"AlarmEvent,omitempty"`
}

// AlarmEvent is one motion delta: Start, Stop, or NoChange.
type AlarmEvent struct {
	ChannelID int    `xml:"channelId"`
	Status    string `xml:"status"` // "MD" start, "none" stop
}

// RfAlarmCfg is a radio-frequency alarm configuration some firmwares
// expose alongside PIR; kept minimal: sub-elements other than enable are
// ignored on decode and are not written back on encode.
type RfAlarmCfg struct {
	Version string `xml:"version,attr,omitempty"`
	Enable  int    `xml:"enable,omitempty"`
}

// UIDInfo answers msg_id 114 (get UID).
type UIDInfo struct {
	Version string `xml:"version,attr,omitempty"`
	UID     string `xml:"uid,omitempty"`
}

// SystemGeneral answers msg_id 104/105 (get/set general system info),
// supplemented from original_source/crates/core/src/bc_protocol/time.rs —
// CamThread uses the setter half to push host time onto cameras configured
// with update_time.
type SystemGeneral struct {
	Version    string `xml:"version,attr,omitempty"`
	TimeZone   int    `xml:"timeZone,omitempty"`
	Year       int    `xml:"year,omitempty"`
	Month      int    `xml:"month,omitempty"`
	Day        int    `xml:"day,omitempty"`
	Hour       int    `xml:"hour,omitempty"`
	Minute     int    `xml:"minute,omitempty"`
	Second     int    `xml:"second,omitempty"`
}

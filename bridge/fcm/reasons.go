package fcm

// ReasonEntry describes how one vendor-reported failure reason maps onto
// the service error contract. Message templates keep the {placeholder}
// form used by the rest of the service; the values are supplied as
// structured log fields, never interpolated into the body.
type ReasonEntry struct {
	Message string
	Status  int
	ErrNo   int
	// Critical reasons point at server-side misconfiguration and are
	// logged for operators instead of being echoed to the caller.
	Critical bool
}

// unreported is the table key used whenever the gateway gives no usable
// reason. The entry must always exist; the lookup relies on it.
const unreported = "Unreported"

// reasonTable mirrors the downstream error reasons of the legacy FCM HTTP
// API.
var reasonTable = map[string]ReasonEntry{
	"MissingRegistration": {
		Message: "'to' or 'registration_id' is blank or invalid: {regid}",
		Status:  500,
		ErrNo:   1,
	},
	"InvalidRegistration": {
		Message: "registration_id is invalid: {regid}",
		Status:  410,
		ErrNo:   105,
	},
	"NotRegistered": {
		Message: "device has unregistered with FCM: {regid}",
		Status:  410,
		ErrNo:   103,
	},
	"InvalidPackageName": {
		Message:  "Invalid Package Name specified",
		Status:   500,
		ErrNo:    2,
		Critical: true,
	},
	"MismatchSenderid": {
		Message:  "Invalid SenderID used: {senderid}",
		Status:   410,
		ErrNo:    105,
		Critical: true,
	},
	"MessageTooBig": {
		Message: "Message length was too big: {nlen}",
		Status:  413,
		ErrNo:   104,
	},
	"InvalidDataKey": {
		Message:  "Payload contains an invalid or restricted key value",
		Status:   500,
		ErrNo:    3,
		Critical: true,
	},
	"InvalidTtl": {
		Message: "Invalid TimeToLive {ttl}",
		Status:  400,
		ErrNo:   111,
	},
	"Unavailable": {
		Message: "Message has timed out or device is unavailable",
		Status:  200,
		ErrNo:   0,
	},
	"InternalServerError": {
		Message: "FCM internal server error",
		Status:  500,
		ErrNo:   999,
	},
	"DeviceMessageRateExceeded": {
		Message: "Too many messages for this device",
		Status:  503,
		ErrNo:   4,
	},
	"TopicsMessageRateExceeded": {
		Message:  "Too many subscribers for this topic",
		Status:   503,
		ErrNo:    5,
		Critical: true,
	},
	unreported: {
		Message:  "Error has no reported reason.",
		Status:   500,
		ErrNo:    999,
		Critical: true,
	},
}

// Reason resolves a vendor reason string to its table entry. The lookup is
// total: unknown or empty reasons resolve to the Unreported entry.
func Reason(name string) ReasonEntry {
	if entry, ok := reasonTable[name]; ok {
		return entry
	}
	return reasonTable[unreported]
}

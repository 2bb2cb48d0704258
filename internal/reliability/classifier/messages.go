package classifier

import "github.com/novik133/NovaBar-sub002/internal/core/domain"

type messageKey struct {
	category domain.ErrorCategory
	connType domain.ConnectionType
}

// typedMessages are the user-facing primary sentences specialized by
// connection type. Lookup falls through to categoryMessages when no typed
// entry exists.
var typedMessages = map[messageKey]string{
	{domain.CategoryConnection, domain.ConnectionWiFi}:            "Unable to connect to WiFi network. Please check your password and try again.",
	{domain.CategoryConnection, domain.ConnectionEthernet}:        "Unable to establish the Ethernet connection.",
	{domain.CategoryConnection, domain.ConnectionVPN}:             "Unable to establish VPN connection. Please verify your credentials and server settings.",
	{domain.CategoryConnection, domain.ConnectionMobileBroadband}: "Unable to connect to the mobile broadband network.",
	{domain.CategoryConnection, domain.ConnectionHotspot}:         "Unable to start the hotspot.",
	{domain.CategoryConnection, domain.ConnectionBluetooth}:       "Unable to connect to the Bluetooth device.",

	{domain.CategoryHardware, domain.ConnectionEthernet}:        "Ethernet connection problem detected. Please check the cable and your network hardware.",
	{domain.CategoryHardware, domain.ConnectionWiFi}:            "A problem with the WiFi hardware was detected.",
	{domain.CategoryHardware, domain.ConnectionMobileBroadband}: "A problem with the modem hardware was detected.",
	{domain.CategoryHardware, domain.ConnectionBluetooth}:       "A problem with the Bluetooth hardware was detected.",

	{domain.CategoryTimeout, domain.ConnectionWiFi}: "The WiFi network did not respond in time.",
	{domain.CategoryTimeout, domain.ConnectionVPN}:  "The VPN server did not respond in time.",

	{domain.CategoryDevice, domain.ConnectionBluetooth}: "The Bluetooth device could not be found.",
}

// categoryMessages are the per-category fallbacks used when no typed entry
// applies. Every category has one, so a classified error always carries a
// non-empty primary message.
var categoryMessages = map[domain.ErrorCategory]string{
	domain.CategoryConnection:    "The connection attempt failed.",
	domain.CategoryConfiguration: "The connection settings are invalid.",
	domain.CategorySystem:        "A system error occurred while managing the connection.",
	domain.CategoryDBus:          "The network service is not responding.",
	domain.CategoryUserInput:     "The supplied credentials are not valid.",
	domain.CategoryPermission:    "You are not authorized to perform this operation.",
	domain.CategoryHardware:      "A hardware problem was detected.",
	domain.CategoryTimeout:       "The operation timed out.",
	domain.CategoryDevice:        "The device could not be found.",
	domain.CategoryAdapter:       "The adapter is not responding.",
	domain.CategoryProtocol:      "A protocol error occurred.",
	domain.CategoryPairing:       "Authentication failed while pairing with the device.",
	domain.CategoryTransfer:      "The file transfer failed.",
	domain.CategoryUnknown:       "An unexpected error occurred.",
}

// recoverySuggestions are static per-category follow-up sentences appended
// after the primary message and technical details, independent of the
// connection type.
var recoverySuggestions = map[domain.ErrorCategory]string{
	domain.CategoryConnection:    "Check your settings and try connecting again.",
	domain.CategoryConfiguration: "Review the connection settings and correct any invalid values.",
	domain.CategorySystem:        "Restarting the network service may resolve this.",
	domain.CategoryDBus:          "Restarting the network service may resolve this.",
	domain.CategoryUserInput:     "Re-enter your credentials and try again.",
	domain.CategoryPermission:    "Contact your system administrator if you believe you should have access.",
	domain.CategoryHardware:      "Check the physical connection and device hardware.",
	domain.CategoryTimeout:       "Try again in a few moments.",
	domain.CategoryDevice:        "Make sure the device is powered on and in range.",
	domain.CategoryAdapter:       "Try turning the adapter off and on again.",
	domain.CategoryProtocol:      "Try again; if the problem persists the remote side may be misconfigured.",
	domain.CategoryPairing:       "Remove the pairing and pair the device again.",
	domain.CategoryTransfer:      "Try the transfer again.",
	domain.CategoryUnknown:       "Try the operation again.",
}

func primaryMessage(cat domain.ErrorCategory, connType domain.ConnectionType) string {
	if msg, ok := typedMessages[messageKey{cat, connType}]; ok {
		return msg
	}
	if msg, ok := categoryMessages[cat]; ok {
		return msg
	}
	return categoryMessages[domain.CategoryUnknown]
}

func recoverySuggestion(cat domain.ErrorCategory) string {
	return recoverySuggestions[cat]
}

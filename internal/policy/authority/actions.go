package authority

// actionDescriptions maps well-known privileged action ids to the human
// description shown in authorization prompts. Unknown ids resolve to an
// empty description rather than an error.
var actionDescriptions = map[string]string{
	"org.freedesktop.NetworkManager.network-control":               "Manage network connections",
	"org.freedesktop.NetworkManager.enable-disable-network":        "Enable or disable networking",
	"org.freedesktop.NetworkManager.enable-disable-wifi":           "Enable or disable WiFi",
	"org.freedesktop.NetworkManager.enable-disable-wwan":           "Enable or disable mobile broadband",
	"org.freedesktop.NetworkManager.settings.modify.system":        "Modify system network settings",
	"org.freedesktop.NetworkManager.settings.modify.own":           "Modify personal network settings",
	"org.freedesktop.NetworkManager.wifi.share.protected":          "Share a protected WiFi connection",
	"org.freedesktop.NetworkManager.wifi.share.open":               "Share an open WiFi connection",
	"org.freedesktop.NetworkManager.wifi.scan":                     "Scan for WiFi networks",
	"org.bluez.device.pair":                                        "Pair a Bluetooth device",
	"org.bluez.device.trust":                                       "Trust a Bluetooth device",
	"org.bluez.adapter.power":                                      "Power the Bluetooth adapter on or off",
	"org.blueman.network.setup":                                    "Set up Bluetooth networking",
	"org.freedesktop.ModemManager1.Device.Control":                 "Control the mobile broadband modem",
	"org.freedesktop.NetworkManager.checkpoint-rollback":           "Roll back network configuration",
}

// ActionDescription returns the human description for a well-known action
// id, or empty when the id is not known.
func ActionDescription(actionID string) string {
	return actionDescriptions[actionID]
}

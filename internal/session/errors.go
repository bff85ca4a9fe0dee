package session

import "errors"

// Operator errors.
var (
	// ErrNoChanges is returned when a settings update carries no fields.
	ErrNoChanges = errors.New("session: no settings to change")

	// ErrReadOnlyAttribute is returned when a settings update names a field the device only reports.
	ErrReadOnlyAttribute = errors.New("session: attribute is read-only")

	// ErrInvalidQuantity is returned for a manual feed quantity below 1.
	ErrInvalidQuantity = errors.New("session: invalid feed quantity")

	// ErrInvalidArgument is returned for empty required operator arguments.
	ErrInvalidArgument = errors.New("session: invalid argument")
)

// Messages reported through EventError when a device reply carries a
// non-OK code, or a device-side operation fails.
const (
	msgRebootFailed          = "Rebooting failed"
	msgFactoryResetFailed    = "Factory reset failed"
	msgWifiReconnectFailed   = "Wifi force reconnect failed"
	msgAttributeSetFailed    = "Updating device attribute(s) failed"
	msgManualFeedFailed      = "Manual feeding failed"
	msgFeedingPlanFailed     = "Configuring feeding plan failed"
	msgFormatSDCardFailed    = "Formatting SD card failed"
	msgFirmwareUpgradeFailed = "Firmware upgrade failed"
	msgDeviceInitFailed      = "Device initialization failed"
)

package identity

// DeviceType enumerates the supported second-factor device classes.
type DeviceType string

const (
	// DeviceYubikey is a hardware YubiKey producing 44-char modhex OTPs.
	DeviceYubikey DeviceType = "yubikey"
	// DeviceTOTP is a time-based OTP authenticator app.
	DeviceTOTP DeviceType = "totp"
	// DeviceSMS is an SMS-delivered one-time code.
	DeviceSMS DeviceType = "sms"
	// DeviceEmail is an email-delivered one-time code.
	DeviceEmail DeviceType = "email"
	// DeviceStatic is a pre-shared secret for development and tests.
	DeviceStatic DeviceType = "static"
)

package featureflag

type Flag string

const (
	FlagDisableUploadVerification Flag = "DISABLE_UPLOAD_VERIFICATION"
	FlagDisableSessionExclusivity Flag = "DISABLE_SESSION_EXCLUSIVITY"
	FlagDisableStabilityHistory   Flag = "DISABLE_STABILITY_HISTORY"
)

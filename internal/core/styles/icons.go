package styles

// Tip: To find icons use https://github.com/loichyan/nerdfix

// Category icons shown on toasts and history rows.
var (
	IconInfo    = ""
	IconWarning = ""
	IconSuccess = ""
	IconError   = ""
)

var (
	IconBell       = ""
	IconBellSlash  = ""
	IconPlug       = ""
	IconHeartPulse = "\U000F05F1"
	IconDot        = "●"
	IconCircle     = "○"
)

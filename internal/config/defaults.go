package config

const (
	defaultDestination          = "~/Pictures/dadcam_output"
	defaultStateDir             = "~/.local/share/dadcam"
	defaultLogDir               = "~/.local/share/dadcam/logs"
	defaultWhitelistPath        = "~/.config/dadcam/whitelist.conf"
	defaultDetectionBackend     = BackendCommand
	defaultDetectorCommand      = "dadcam-detect"
	defaultModel                = "yolov8n"
	defaultFallbackModel        = "yolov5s"
	defaultModelDir             = "~/.local/share/dadcam/models"
	defaultConfidenceThreshold  = 0.35
	defaultDetectorStartSeconds = 60
	defaultFrameSampleInterval  = 30
	defaultFFmpegBinary         = "ffmpeg"
	defaultFFprobeBinary        = "ffprobe"
	defaultKeepReports          = 50
	defaultUdisksctlBinary      = "udisksctl"
	defaultBlkidBinary          = "blkid"
	defaultUdevadmBinary        = "udevadm"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 30
)

// Detection backend identifiers accepted by detection.backend.
const (
	BackendCommand = "command"
	BackendNone    = "none"
)

// DefaultClassesOfInterest lists the detector labels kept by default.
var DefaultClassesOfInterest = []string{
	"person",
	"bird",
	"cat",
	"dog",
	"horse",
	"sheep",
	"cow",
	"elephant",
	"bear",
	"zebra",
	"giraffe",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			Destination: defaultDestination,
			StateDir:    defaultStateDir,
			LogDir:      defaultLogDir,
			Whitelist:   defaultWhitelistPath,
		},
		Detection: Detection{
			Backend:             defaultDetectionBackend,
			Command:             defaultDetectorCommand,
			Model:               defaultModel,
			FallbackModel:       defaultFallbackModel,
			ModelDir:            defaultModelDir,
			ConfidenceThreshold: defaultConfidenceThreshold,
			ClassesOfInterest:   append([]string(nil), DefaultClassesOfInterest...),
			StartupTimeout:      defaultDetectorStartSeconds,
		},
		Video: Video{
			FrameSampleInterval: defaultFrameSampleInterval,
			FFmpeg:              defaultFFmpegBinary,
			FFprobe:             defaultFFprobeBinary,
		},
		Report: Report{
			KeepReports: defaultKeepReports,
		},
		Device: Device{
			Udisksctl: defaultUdisksctlBinary,
			Blkid:     defaultBlkidBinary,
			Udevadm:   defaultUdevadmBinary,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}

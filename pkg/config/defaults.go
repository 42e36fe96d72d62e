package config

const (
	defaultDownloadDir   = "~/Mangas"
	defaultLibraryDB     = "~/.local/share/shelf/library.db"
	defaultRateLimit     = 200
	defaultImageFormat   = "png"
	defaultChapterFormat = "{index} {title}"
	defaultLanguage      = "en"
	defaultLogLevel      = "info"
	defaultLogFormat     = "console"
)

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Paths: Paths{
			DownloadDir: defaultDownloadDir,
			LibraryDB:   defaultLibraryDB,
		},
		Download: Download{
			RateLimit:     defaultRateLimit,
			ImageFormat:   defaultImageFormat,
			ChapterFormat: defaultChapterFormat,
		},
		Sources: Sources{
			Language: defaultLanguage,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Library: Library{
			Enabled: true,
		},
	}
}

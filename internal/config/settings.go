package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Fetcher modes accepted by general.fetcher.
const (
	FetcherAuto   = "auto"
	FetcherYtDlp  = "ytdlp"
	FetcherDirect = "direct"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Settings maps settings.yml. Every key can be overridden with a SAVERX_
// environment variable, e.g. SAVERX_GENERAL_DOWNLOAD_DIR.
type Settings struct {
	General GeneralSettings `mapstructure:"general"`
	Policy  PolicySettings  `mapstructure:"policy"`
	YtDlp   YtDlpSettings   `mapstructure:"ytdlp"`
	Direct  DirectSettings  `mapstructure:"direct"`
	Server  ServerSettings  `mapstructure:"server"`
}

type GeneralSettings struct {
	DownloadDir string `mapstructure:"download_dir"`
	Fetcher     string `mapstructure:"fetcher"`
	AutoPaste   bool   `mapstructure:"auto_paste"`
}

type PolicySettings struct {
	AllowYouTube bool `mapstructure:"allow_youtube"`
}

type YtDlpSettings struct {
	Binary         string `mapstructure:"binary"`
	Format         string `mapstructure:"format"`
	OutputTemplate string `mapstructure:"output_template"`
	NoPlaylist     bool   `mapstructure:"no_playlist"`
}

type DirectSettings struct {
	UserAgent        string        `mapstructure:"user_agent"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
}

type ServerSettings struct {
	Port int `mapstructure:"port"`
}

func DefaultSettings() *Settings {
	return &Settings{
		General: GeneralSettings{
			DownloadDir: DefaultDownloadDir(),
			Fetcher:     FetcherAuto,
			AutoPaste:   true,
		},
		Policy: PolicySettings{
			AllowYouTube: true,
		},
		YtDlp: YtDlpSettings{
			Binary:         "yt-dlp",
			Format:         "best[ext=mp4]/best",
			OutputTemplate: "%(title)s.%(ext)s",
			NoPlaylist:     true,
		},
		Direct: DirectSettings{
			UserAgent:        defaultUserAgent,
			ProgressInterval: 500 * time.Millisecond,
		},
	}
}

// LoadSettings reads settings.yml from the app directory.
func LoadSettings() (*Settings, error) {
	return LoadSettingsFrom(GetAppDir())
}

// LoadSettingsFrom reads settings.yml from dir. A missing file yields the
// defaults; a malformed one is an error.
func LoadSettingsFrom(dir string) (*Settings, error) {
	v := viper.New()
	v.SetConfigName("settings")
	v.SetConfigType("yml")
	v.AddConfigPath(dir)

	v.SetEnvPrefix("SAVERX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := DefaultSettings()
	v.SetDefault("general.download_dir", d.General.DownloadDir)
	v.SetDefault("general.fetcher", d.General.Fetcher)
	v.SetDefault("general.auto_paste", d.General.AutoPaste)
	v.SetDefault("policy.allow_youtube", d.Policy.AllowYouTube)
	v.SetDefault("ytdlp.binary", d.YtDlp.Binary)
	v.SetDefault("ytdlp.format", d.YtDlp.Format)
	v.SetDefault("ytdlp.output_template", d.YtDlp.OutputTemplate)
	v.SetDefault("ytdlp.no_playlist", d.YtDlp.NoPlaylist)
	v.SetDefault("direct.user_agent", d.Direct.UserAgent)
	v.SetDefault("direct.progress_interval", d.Direct.ProgressInterval)
	v.SetDefault("server.port", d.Server.Port)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read settings: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) Validate() error {
	switch s.General.Fetcher {
	case FetcherAuto, FetcherYtDlp, FetcherDirect:
	default:
		return fmt.Errorf("invalid general.fetcher %q: want auto, ytdlp or direct", s.General.Fetcher)
	}
	if s.Server.Port < 0 || s.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", s.Server.Port)
	}
	return nil
}

// DownloadDir returns the destination directory with a leading ~ expanded.
func (s *Settings) DownloadDir() string {
	dir := s.General.DownloadDir
	if dir == "" {
		return DefaultDownloadDir()
	}
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
		}
	}
	return dir
}

var youtubeHosts = []string{"youtube.com", "youtu.be", "youtube-nocookie.com"}

// IsYouTubeURL reports whether rawurl points at a YouTube host.
func IsYouTubeURL(rawurl string) bool {
	trimmed := strings.TrimSpace(rawurl)
	u, err := url.Parse(trimmed)
	if err != nil {
		return false
	}
	// yt-dlp accepts "youtube.com/watch?v=x", which parses as a bare path.
	if u.Host == "" {
		if u, err = url.Parse("https://" + trimmed); err != nil {
			return false
		}
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range youtubeHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// Check rejects URLs the policy does not allow.
func (p PolicySettings) Check(rawurl string) error {
	if !p.AllowYouTube && IsYouTubeURL(rawurl) {
		return errors.New("YouTube downloads are disabled in this build")
	}
	return nil
}

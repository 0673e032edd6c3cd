package statepaths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	TopicStateFilename   = "topics.json"
	MessageMapFilename   = "message_map.json"
	WelcomeMediaFilename = "welcome_media.json"

	defaultStateDirName = ".tgzamirbor"
)

func StateDir() string {
	return resolveStateDir(viper.GetString("file_state_dir"))
}

func TopicStatePath() string {
	return filepath.Join(StateDir(), TopicStateFilename)
}

func MessageMapPath() string {
	return filepath.Join(StateDir(), MessageMapFilename)
}

func WelcomeMediaPath() string {
	return filepath.Join(StateDir(), WelcomeMediaFilename)
}

func resolveStateDir(configured string) string {
	dir := expandHomePath(strings.TrimSpace(configured))
	if dir != "" {
		return filepath.Clean(dir)
	}
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return defaultStateDirName
	}
	return filepath.Join(home, defaultStateDirName)
}

func expandHomePath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil && strings.TrimSpace(home) != "" {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

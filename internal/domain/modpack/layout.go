package modpack

import (
	"path/filepath"
)

const (
	// DataDirName is the working copy of the content repository.
	DataDirName = "_data"
	// LauncherDirName holds the launcher binary and its configuration.
	LauncherDirName = "launcher"
	// InstancesDirName is the launcher's instance folder.
	InstancesDirName = "instances"
	// ManifestFilename is the overwrite manifest at the root of the working copy.
	ManifestFilename = "overwrite.txt"
	// LauncherConfigFilename is the launcher configuration written on provisioning.
	LauncherConfigFilename = "multimc.cfg"
	// ScratchDirName holds download artifacts while they are consumed.
	ScratchDirName = ".tmp"
	// StateFilename stores the last deployment record.
	StateFilename = "modsync-state.json"
	// MarkerFilename marks that a modsync run owns the installation right now.
	MarkerFilename = "modsync.lock"
	// RepositoryMetaDirName is the repository metadata folder inside the working copy.
	RepositoryMetaDirName = ".git"
)

// Layout resolves every path modsync touches from a single base directory.
type Layout struct {
	// Base is the directory modsync is installed in.
	Base string
	// Instance is the launcher instance name.
	Instance string
	// LauncherBinary is the launcher executable file name.
	LauncherBinary string
	// LaunchScript is the launch script file name.
	LaunchScript string
}

// NewLayout builds the layout for base, using the launch script of goos.
func NewLayout(base, instance, launcherBinary, goos string) Layout {
	return Layout{
		Base:           filepath.Clean(base),
		Instance:       instance,
		LauncherBinary: launcherBinary,
		LaunchScript:   LaunchScriptName(goos),
	}
}

// LaunchScriptName returns the launch script file name for goos.
func LaunchScriptName(goos string) string {
	if goos == "windows" {
		return "launch.bat"
	}

	return "launch.sh"
}

// DataDir is the working copy of the content repository.
func (l Layout) DataDir() string {
	return filepath.Join(l.Base, DataDirName)
}

// InstanceDir is the live installation the modpack is overlaid onto.
func (l Layout) InstanceDir() string {
	return filepath.Join(l.LauncherDir(), InstancesDirName, l.Instance)
}

// LauncherDir holds the launcher installation.
func (l Layout) LauncherDir() string {
	return filepath.Join(l.Base, LauncherDirName)
}

// LauncherBinaryPath is the launcher executable.
func (l Layout) LauncherBinaryPath() string {
	return filepath.Join(l.LauncherDir(), l.LauncherBinary)
}

// LauncherConfigPath is the launcher configuration file.
func (l Layout) LauncherConfigPath() string {
	return filepath.Join(l.LauncherDir(), LauncherConfigFilename)
}

// LaunchScriptPath is the script spawned to start the game.
func (l Layout) LaunchScriptPath() string {
	return filepath.Join(l.Base, l.LaunchScript)
}

// ScratchDir holds temporary download artifacts.
func (l Layout) ScratchDir() string {
	return filepath.Join(l.Base, ScratchDirName)
}

// StatePath is the deployment record.
func (l Layout) StatePath() string {
	return filepath.Join(l.Base, StateFilename)
}

// MarkerPath is the run marker.
func (l Layout) MarkerPath() string {
	return filepath.Join(l.Base, MarkerFilename)
}

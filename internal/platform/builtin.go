package platform

import "github.com/janekbaraniewski/loginswap/internal/archive"

const (
	discordTokenPattern    = `[\w-]{24}\.[\w-]{6}\.[\w-]{27}`
	discordMFATokenPattern = `mfa\.[\w-]{84}`
)

// Builtins returns the platforms shipped with loginswap.
func Builtins() []Spec {
	return []Spec{
		{
			ID:        "discord",
			Name:      "Discord",
			Processes: []string{"Discord.exe"},
			Exe:       "discord",
			ExeByOS: map[string]string{
				"windows": "Update.exe",
				"darwin":  "Contents/MacOS/Discord",
			},
			DefaultFolder: "/usr/bin",
			FolderByOS: map[string]string{
				"windows": "${LOCALAPPDATA}/Discord",
				"darwin":  "/Applications/Discord.app",
			},
			LiveRoot: "${XDG_CONFIG_HOME}/discord",
			LiveRootByOS: map[string]string{
				"windows": "${APPDATA}/discord",
				"darwin":  "${HOME}/Library/Application Support/discord",
			},
			Layout: archive.Layout{
				Files:   []string{"Cookies", "Network Persistent State", "Preferences", "TransportSecurity"},
				Folders: []string{"Local Storage", "Session Storage", "blob_storage"},
				Globs:   []string{"Cache/data_*", "Cache/index"},
				Sensitive: []string{
					"Local Storage/leveldb/*.ldb",
					"Local Storage/leveldb/*.log",
					"Session Storage/*.ldb",
					"Session Storage/*.log",
				},
			},
			Key: KeySpec{
				Source:   KeyTokenScan,
				Files:    []string{"Local Storage/leveldb/*.ldb", "Local Storage/leveldb/*.log"},
				Patterns: []string{discordTokenPattern, discordMFATokenPattern},
			},
			Extras:    map[string]any{"start_minimized": false},
			ExtraArgs: map[string]string{"start_minimized": "--start-minimized"},
		},
		{
			ID:            "epic",
			Name:          "Epic Games",
			OS:            []string{"windows"},
			Processes:     []string{"EpicGamesLauncher.exe", "EpicWebHelper.exe"},
			Exe:           "Launcher/Portal/Binaries/Win32/EpicGamesLauncher.exe",
			DefaultFolder: `C:\Program Files (x86)\Epic Games`,
			LiveRoot:      "${LOCALAPPDATA}/EpicGamesLauncher",
			Layout: archive.Layout{
				Files: []string{"Saved/Config/Windows/GameUserSettings.ini"},
			},
			Key: KeySpec{Source: KeyRegistry},
			Registry: &RegistryBinding{
				Path:  `Software\Epic Games\Unreal Engine\Identifiers`,
				Value: "AccountId",
			},
		},
		{
			ID:            "ubisoft",
			Name:          "Ubisoft Connect",
			OS:            []string{"windows"},
			Processes:     []string{"upc.exe", "UbisoftConnect.exe", "UplayWebCore.exe"},
			Exe:           "upc.exe",
			DefaultFolder: `C:\Program Files (x86)\Ubisoft\Ubisoft Game Launcher`,
			LiveRoot:      "${LOCALAPPDATA}/Ubisoft Game Launcher",
			Layout: archive.Layout{
				Files:     []string{"user.dat", "ConnectSecureStorage.dat", "users.dat"},
				Sensitive: []string{"user.dat", "ConnectSecureStorage.dat"},
			},
			Key: KeySpec{Source: KeyFileHash, Files: []string{"user.dat"}},
		},
	}
}

package launcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harshul/relic/internal/platform"
	"github.com/harshul/relic/internal/supervisor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	launcher *Launcher
	starter  *fakeStarter
	host     *supervisor.Registry
	dialog   *fakeDialog
	opener   *fakeOpener
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		starter: &fakeStarter{},
		dialog:  &fakeDialog{},
		opener:  &fakeOpener{},
	}
	h.host = supervisor.NewRegistry(supervisor.WithStarter(h.starter), supervisor.WithProcessTree(noopTree{}))
	all := append([]Option{
		WithPlatform(platform.Linux),
		WithPreferences(Preferences{Root: "/fp"}),
		WithHost(h.host),
		WithDialog(h.dialog),
		WithOpener(h.opener),
		WithEnviron(testEnviron),
	}, opts...)
	l, err := New(all...)
	require.NoError(t, err)
	h.launcher = l
	return h
}

func TestNew_UnsupportedPlatform(t *testing.T) {
	_, err := New(WithPlatform("plan9"))
	assert.ErrorIs(t, err, platform.ErrUnsupportedPlatform)
}

func TestLaunchTitle_Default(t *testing.T) {
	h := newHarness(t)
	title := Title{ID: "t1", Name: "Title", ApplicationPath: "Games/player", LaunchCommand: "http://example.com/$x.swf"}

	proc, err := h.launcher.LaunchTitle(context.Background(), title, nil)
	require.NoError(t, err)
	require.NotNil(t, proc)

	assert.Equal(t, "game.t1", proc.ID())
	assert.Equal(t, supervisor.Running, proc.State())

	cmds := h.starter.commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, `"/fp/Games/player"`, cmds[0].Filename)
	assert.Equal(t, []string{`http://example.com/\$x.swf`}, cmds[0].Args)
	assert.True(t, cmds[0].Shell)
	assert.Contains(t, cmds[0].Env, "RELIC_ROOT=/fp")
}

func TestLaunchTitle_CompatLayerForExe(t *testing.T) {
	h := newHarness(t)
	title := Title{ID: "t1", Name: "Title", ApplicationPath: `FPSoftware\Flash\flashplayer.exe`, LaunchCommand: "a.swf"}

	_, err := h.launcher.LaunchTitle(context.Background(), title, nil)
	require.NoError(t, err)

	cmds := h.starter.commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, `wine start /wait /unix "/fp/FPSoftware/Flash/flashplayer.exe"`, cmds[0].Filename)
}

func TestLaunchTitle_WindowsHasNoCompatLayer(t *testing.T) {
	h := newHarness(t, WithPlatform(platform.Windows), WithPreferences(Preferences{Root: `C:\fp`}))
	title := Title{ID: "t1", Name: "Title", ApplicationPath: `FPSoftware/game.exe`, LaunchCommand: "a&b"}

	_, err := h.launcher.LaunchTitle(context.Background(), title, nil)
	require.NoError(t, err)

	cmds := h.starter.commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, `"C:\fp\FPSoftware\game.exe"`, cmds[0].Filename)
	assert.Equal(t, []string{"a^&b"}, cmds[0].Args)
	assert.NotContains(t, cmds[0].Env, "WINEDEBUG=fixme-all")
}

func TestLaunchTitle_Placeholder(t *testing.T) {
	h := newHarness(t)
	proc, err := h.launcher.LaunchTitle(context.Background(), Title{ID: "p", Placeholder: true, ApplicationPath: "x"}, nil)
	require.NoError(t, err)
	assert.Nil(t, proc)
	assert.Empty(t, h.starter.commands())
}

func TestLaunchTitle_PreLaunchCheck(t *testing.T) {
	h := newHarness(t, WithPreLaunchCheck(func(ctx context.Context, title Title) error {
		return errors.New("component missing")
	}))

	_, err := h.launcher.LaunchTitle(context.Background(), Title{ID: "t", ApplicationPath: "x"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "component missing")
	assert.Empty(t, h.starter.commands())
}

func TestLaunchTitle_MessageDependenciesNeverSpawn(t *testing.T) {
	h := newHarness(t)
	h.starter.exit = true
	title := Title{
		ID:              "t1",
		Name:            "Title",
		ApplicationPath: "Games/player",
		AdditionalRuns: []AdditionalRun{
			{ID: "m1", Name: "Readme", Action: ParseRunAction(":message:", "Press F to start", true), AutoRunBefore: true},
			{ID: "d1", Name: "Server", Action: ParseRunAction("Server/run", "-p 80", false), AutoRunBefore: true},
			{ID: "m2", Name: "Not before", Action: ParseRunAction(":message:", "later", false)},
		},
	}

	_, err := h.launcher.LaunchTitle(context.Background(), title, nil)
	require.NoError(t, err)

	cmds := h.starter.commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, `"/fp/Server/run" -p 80`, cmds[0].Filename)
	assert.Equal(t, `"/fp/Games/player"`, cmds[1].Filename)

	require.Len(t, h.dialog.messages, 1)
	assert.Equal(t, "Press F to start", h.dialog.messages[0].Message)
	assert.True(t, h.dialog.messages[0].LargeMessage)
	assert.Equal(t, []string{"Ok"}, h.dialog.messages[0].Buttons)
	assert.Equal(t, 1, h.dialog.awaited)
}

func TestLaunchTitle_DependencyFailureAborts(t *testing.T) {
	h := newHarness(t)
	h.starter.fail = func(c supervisor.Command) error {
		if c.Filename == `"/fp/broken"` {
			return errors.New("no such file")
		}
		return nil
	}
	title := Title{
		ID:              "t1",
		ApplicationPath: "Games/player",
		AdditionalRuns: []AdditionalRun{
			{ID: "d1", Name: "Broken", Action: NormalLaunch{Path: "broken"}, AutoRunBefore: true},
		},
	}

	_, err := h.launcher.LaunchTitle(context.Background(), title, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `run before "Broken"`)
	assert.Contains(t, err.Error(), "no such file")
	assert.Empty(t, h.starter.commands())
}

func TestLaunchTitle_MissingMiddleware(t *testing.T) {
	h := newHarness(t, WithMiddleware(MiddlewareMap{}))

	proc, err := h.launcher.LaunchTitle(context.Background(), Title{ID: "t1", ApplicationPath: "x"},
		[]MiddlewareConfig{{ID: "X", Enabled: true}})
	require.Error(t, err)
	assert.Nil(t, proc)
	assert.Contains(t, err.Error(), `"X"`)
	assert.ErrorIs(t, err, ErrMiddlewareNotFound)

	var mwErr *MiddlewareError
	require.ErrorAs(t, err, &mwErr)
	assert.Equal(t, "X", mwErr.ID)
	assert.Empty(t, h.starter.commands())
}

func TestLaunchTitle_MiddlewareChain(t *testing.T) {
	appendArg := func(arg string) Middleware {
		return MiddlewareFunc(func(ctx context.Context, info LaunchInfo, config any) (LaunchInfo, error) {
			info.Arguments = append(info.Arguments, arg)
			if v, ok := config.(string); ok {
				info.Env["MW"] = v
			}
			return info, nil
		})
	}
	reg := MiddlewareMap{"a": appendArg("one"), "b": appendArg("two"), "off": appendArg("never")}
	h := newHarness(t, WithMiddleware(reg))

	_, err := h.launcher.LaunchTitle(context.Background(), Title{ID: "t1", ApplicationPath: "x", LaunchCommand: "base"},
		[]MiddlewareConfig{
			{ID: "a", Enabled: true},
			{ID: "off", Enabled: false},
			{ID: "b", Enabled: true, Config: "configured"},
		})
	require.NoError(t, err)

	cmds := h.starter.commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, []string{"base", "one", "two"}, cmds[0].Args)
	assert.Contains(t, cmds[0].Env, "MW=configured")
}

func TestLaunchTitle_MiddlewareError(t *testing.T) {
	failing := MiddlewareFunc(func(ctx context.Context, info LaunchInfo, config any) (LaunchInfo, error) {
		return LaunchInfo{}, errors.New("refused")
	})
	h := newHarness(t, WithMiddleware(MiddlewareMap{"guard": failing}))

	_, err := h.launcher.LaunchTitle(context.Background(), Title{ID: "t1", ApplicationPath: "x"},
		[]MiddlewareConfig{{ID: "guard", Enabled: true}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "guard")
	assert.Contains(t, err.Error(), "refused")
	assert.Empty(t, h.starter.commands())
}

func TestLaunchTitle_ProviderFallback(t *testing.T) {
	var calls []string
	providers := ProviderList{
		{
			Name:     "unrelated",
			Provides: []string{"other"},
			Resolve: func(ctx context.Context, title Title, cmd string) (Resolution, error) {
				calls = append(calls, "unrelated")
				return ResolvedPath("/never"), nil
			},
		},
		{
			Name:     "failing",
			Provides: []string{"Games/player"},
			Resolve: func(ctx context.Context, title Title, cmd string) (Resolution, error) {
				calls = append(calls, "failing")
				return nil, errors.New("offline")
			},
		},
		{
			Name:     "invalid",
			Provides: []string{"Games/player"},
			Resolve: func(ctx context.Context, title Title, cmd string) (Resolution, error) {
				calls = append(calls, "invalid")
				return ResolvedPath(""), nil
			},
		},
		{
			Name:     "argv",
			Provides: []string{"Games/player"},
			Resolve: func(ctx context.Context, title Title, cmd string) (Resolution, error) {
				calls = append(calls, "argv:"+cmd)
				return ResolvedArgv{"/opt/player", "--fullscreen"}, nil
			},
		},
		{
			Name:     "after",
			Provides: []string{"Games/player"},
			Resolve: func(ctx context.Context, title Title, cmd string) (Resolution, error) {
				calls = append(calls, "after")
				return ResolvedPath("/late"), nil
			},
		},
	}
	h := newHarness(t, WithProviders(providers))

	_, err := h.launcher.LaunchTitle(context.Background(), Title{ID: "t1", ApplicationPath: "Games/player", LaunchCommand: "game.swf"}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"failing", "invalid", "argv:game.swf"}, calls)
	cmds := h.starter.commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, `"/opt/player"`, cmds[0].Filename)
	assert.Equal(t, []string{"--fullscreen", "game.swf"}, cmds[0].Args)
}

func TestLaunchTitle_ProviderMatchesOriginalPath(t *testing.T) {
	providers := ProviderList{{
		Name:     "path",
		Provides: []string{"Games/player.bat"},
		Resolve: func(ctx context.Context, title Title, cmd string) (Resolution, error) {
			return ResolvedPath("Games/alt"), nil
		},
	}}
	h := newHarness(t, WithProviders(providers))

	_, err := h.launcher.LaunchTitle(context.Background(), Title{ID: "t1", ApplicationPath: "Games/player.bat"}, nil)
	require.NoError(t, err)

	cmds := h.starter.commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, `"/fp/Games/alt"`, cmds[0].Filename)
}

func TestLaunchTitle_BrowserMode(t *testing.T) {
	providers := ProviderList{{
		Name:     "browser",
		Provides: []string{"Games/player"},
		Resolve: func(ctx context.Context, title Title, cmd string) (Resolution, error) {
			return BrowserResolution{URL: "http://example.com/game", Proxy: "localhost:22500"}, nil
		},
	}}
	prefs := Preferences{
		Root:    "/fp",
		Browser: BrowserPreferences{Executable: "/usr/bin/relic-browser", Args: []string{"--kiosk"}},
	}
	h := newHarness(t, WithProviders(providers), WithPreferences(prefs))

	proc, err := h.launcher.LaunchTitle(context.Background(), Title{ID: "t1", Name: "Title", ApplicationPath: "Games/player"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "game.t1", proc.ID())

	cmds := h.starter.commands()
	require.Len(t, cmds, 1)
	assert.False(t, cmds[0].Shell)
	assert.Equal(t, "/usr/bin/relic-browser", cmds[0].Filename)
	assert.Equal(t, []string{"--kiosk", "browser_mode=true", "proxy=localhost:22500", "browser_url=http://example.com/game"}, cmds[0].Args)
	assert.Equal(t, "/fp", cmds[0].Dir)
	assert.NotContains(t, cmds[0].Env, "ELECTRON_RUN_AS_NODE=1")
	assert.Contains(t, cmds[0].Env, "HOME=/home/player")
}

func TestLaunchTitle_Overrides(t *testing.T) {
	prefs := Preferences{
		Root: "/fp",
		Overrides: []PathOverride{
			{Path: "Games/player", Override: "/disabled", Enabled: false},
			{Path: "Games/player", Override: "/custom/player", Enabled: true},
		},
	}
	h := newHarness(t, WithPreferences(prefs))

	_, err := h.launcher.LaunchTitle(context.Background(), Title{ID: "t1", ApplicationPath: "Games/player"}, nil)
	require.NoError(t, err)

	cmds := h.starter.commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, `"/custom/player"`, cmds[0].Filename)
}

func TestLaunchTitle_ExecMappings(t *testing.T) {
	prefs := Preferences{
		Root:   "/fp",
		Native: true,
		ExecMappings: []platform.ExecMapping{
			{Win32: `FPSoftware\Flash\flashplayer.exe`, Linux: "FPSoftware/Flash/flashplayer"},
		},
	}
	h := newHarness(t, WithPreferences(prefs))

	_, err := h.launcher.LaunchTitle(context.Background(), Title{ID: "t1", ApplicationPath: `FPSoftware\Flash\flashplayer.exe`}, nil)
	require.NoError(t, err)

	cmds := h.starter.commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, `"/fp/FPSoftware/Flash/flashplayer"`, cmds[0].Filename)
}

func TestLaunchTitle_DuplicateLiveTitle(t *testing.T) {
	h := newHarness(t)
	title := Title{ID: "t1", ApplicationPath: "x"}

	_, err := h.launcher.LaunchTitle(context.Background(), title, nil)
	require.NoError(t, err)
	_, err = h.launcher.LaunchTitle(context.Background(), title, nil)
	assert.ErrorIs(t, err, supervisor.ErrAlreadyRunning)
}

func TestLaunchTitle_SpawnFailureIsLogged(t *testing.T) {
	h := newHarness(t)
	h.starter.fail = func(supervisor.Command) error { return errors.New("denied") }

	proc, err := h.launcher.LaunchTitle(context.Background(), Title{ID: "t1", ApplicationPath: "x"}, nil)
	require.NoError(t, err)
	require.NotNil(t, proc)
	assert.Equal(t, supervisor.Stopped, proc.State())
	_, ok := h.host.Get("game.t1")
	assert.False(t, ok)
}

func TestLaunchTitle_RemovedFromHostOnExit(t *testing.T) {
	h := newHarness(t)
	h.starter.exit = true

	_, err := h.launcher.LaunchTitle(context.Background(), Title{ID: "t1", ApplicationPath: "x"}, nil)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, ok := h.host.Get("game.t1")
		return !ok
	}, 2*time.Second, 5*time.Millisecond)
}

func TestLaunchAdditionalRun_Extras(t *testing.T) {
	h := newHarness(t)

	err := h.launcher.LaunchAdditionalRun(context.Background(), Title{}, AdditionalRun{ID: "e", Action: ParseRunAction(":extras:", "Manual", false)})
	require.NoError(t, err)
	assert.Equal(t, []string{"/fp/Extras/Manual"}, h.opener.paths)
	assert.Empty(t, h.dialog.messages)
}

func TestLaunchAdditionalRun_ExtrasFailureShowsDialog(t *testing.T) {
	h := newHarness(t)
	h.opener.err = errors.New("no handler")

	err := h.launcher.LaunchAdditionalRun(context.Background(), Title{}, AdditionalRun{ID: "e", Action: OpenExternal{Path: "Manual"}})
	require.NoError(t, err)
	require.Len(t, h.dialog.messages, 1)
	assert.Equal(t, "no handler\nPath: /fp/Extras/Manual", h.dialog.messages[0].Message)
}

func TestLaunchAdditionalRun_MessageWithoutWait(t *testing.T) {
	h := newHarness(t)

	err := h.launcher.LaunchAdditionalRun(context.Background(), Title{}, AdditionalRun{Action: ShowMessage{Text: "hi"}})
	require.NoError(t, err)
	assert.Len(t, h.dialog.messages, 1)
	assert.Zero(t, h.dialog.awaited)
}

func TestLaunchAdditionalRun_WaitForExit(t *testing.T) {
	h := newHarness(t)
	h.starter.exit = true

	run := AdditionalRun{ID: "r1", Name: "Setup", Action: NormalLaunch{Path: "setup.exe", Args: "/quiet"}, WaitForExit: true}
	err := h.launcher.LaunchAdditionalRun(context.Background(), Title{}, run)
	require.NoError(t, err)

	cmds := h.starter.commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, `wine start /wait /unix "/fp/setup.exe" /quiet`, cmds[0].Filename)
	assert.True(t, cmds[0].Shell)
}

func TestLaunchAdditionalRun_WaitHonorsContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	run := AdditionalRun{ID: "r1", Name: "Server", Action: NormalLaunch{Path: "server"}, WaitForExit: true}
	err := h.launcher.LaunchAdditionalRun(ctx, Title{}, run)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLaunchAdditionalRun_NoAction(t *testing.T) {
	h := newHarness(t)
	err := h.launcher.LaunchAdditionalRun(context.Background(), Title{}, AdditionalRun{Name: "empty"})
	assert.Error(t, err)
}

func TestEnvironment(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Libraries", "wine", "bin"), 0o755))

	tests := []struct {
		name     string
		platform platform.Platform
		prefs    Preferences
		want     map[string]string
		absent   []string
	}{
		{
			name:     "linux with proxy and bundled wine",
			platform: platform.Linux,
			prefs:    Preferences{Root: root, Proxy: "localhost:22500", EnvPath: "/opt/bin"},
			want: map[string]string{
				"RELIC_ROOT": root,
				"WINEDEBUG":  "fixme-all",
				"http_proxy": "http://localhost:22500/",
				"HTTP_PROXY": "http://localhost:22500/",
				"PATH":       filepath.Join(root, "Libraries", "wine", "bin") + ":/opt/bin",
				"HOME":       "/home/player",
			},
		},
		{
			name:     "darwin without proxy",
			platform: platform.Darwin,
			prefs:    Preferences{Root: "/missing"},
			want:     map[string]string{"WINEDEBUG": "fixme-all", "PATH": "/usr/bin"},
			absent:   []string{"http_proxy", "HTTP_PROXY"},
		},
		{
			name:     "windows",
			platform: platform.Windows,
			prefs:    Preferences{Root: root, Proxy: "localhost:22500"},
			want:     map[string]string{"RELIC_ROOT": root, "PATH": "/usr/bin"},
			absent:   []string{"WINEDEBUG", "http_proxy", "BROKEN"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(WithPlatform(tt.platform), WithPreferences(tt.prefs), WithEnviron(testEnviron))
			require.NoError(t, err)

			env := l.Environment()
			for k, v := range tt.want {
				assert.Equal(t, v, env[k], k)
			}
			for _, k := range tt.absent {
				assert.NotContains(t, env, k)
			}
		})
	}
}

func TestParseRunAction(t *testing.T) {
	assert.Equal(t, ShowMessage{Text: "hello", WaitForExit: true}, ParseRunAction(":message:", "hello", true))
	assert.Equal(t, OpenExternal{Path: "Guide.pdf"}, ParseRunAction(":extras:", "Guide.pdf", true))
	assert.Equal(t, NormalLaunch{Path: "run.bat", Args: "-x"}, ParseRunAction("run.bat", "-x", false))
}

func TestApplicationPath(t *testing.T) {
	prefs := Preferences{
		Root:   "/fp",
		Native: true,
		ExecMappings: []platform.ExecMapping{
			{Win32: `FPSoftware\Flash\flashplayer.exe`, Linux: "FPSoftware/Flash/flashplayer"},
		},
	}
	h := newHarness(t, WithPreferences(prefs))

	assert.Equal(t, "/fp/FPSoftware/Flash/flashplayer", h.launcher.ApplicationPath(`FPSoftware\Flash\flashplayer.exe`))
	assert.Equal(t, "/opt/player", h.launcher.ApplicationPath("/opt/player"))
	assert.Equal(t, "/fp/dir/run.sh", h.launcher.ApplicationPath(`dir\run.bat`))
}

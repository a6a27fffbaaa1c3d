package main

import (
	"embed"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/wailsapp/wails/v3/pkg/application"
	"github.com/wailsapp/wails/v3/pkg/events"
	"go.voxkey.app/voxkey/internal/app"
)

//go:embed all:frontend/dist
var assets embed.FS

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Optional .env so OPENAI_API_KEY can be supplied without the UI.
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded environment from .env")
	}

	slog.Info("starting app", "version", version, "commit", commit, "date", date)
	svc := app.New(version)

	wailsApp := application.New(application.Options{
		Name:        "Voxkey",
		Description: "Hotkey-driven voice and clipboard assistant",
		Services: []application.Service{
			application.NewService(svc),
		},
		Assets: application.AssetOptions{
			Handler: application.BundledAssetFileServer(assets),
		},
		Mac: application.MacOptions{
			// Don't quit when all windows are closed (we have a system tray)
			ApplicationShouldTerminateAfterLastWindowClosed: false,
		},
	})

	mainWindow := wailsApp.Window.NewWithOptions(application.WebviewWindowOptions{
		Title:  "Voxkey",
		Width:  460,
		Height: 620,
		URL:    "/",
		Mac: application.MacWindow{
			TitleBar:                application.MacTitleBarHiddenInsetUnified,
			InvisibleTitleBarHeight: 38,
		},
	})

	// Intercept window close: hide instead of destroy so tray can reopen
	mainWindow.RegisterHook(events.Common.WindowClosing, func(e *application.WindowEvent) {
		e.Cancel()
		mainWindow.Hide()
	})

	svc.Init(wailsApp, mainWindow)

	systemTray := wailsApp.SystemTray.New()
	systemTray.SetLabel("Voxkey")

	trayMenu := wailsApp.NewMenu()
	trayMenu.Add("Show Window").OnClick(func(ctx *application.Context) {
		mainWindow.Show()
		mainWindow.Focus()
	})
	trayMenu.AddCheckbox("LLM Shortcuts", svc.GetShortcutsEnabled()).
		OnClick(func(ctx *application.Context) {
			if err := svc.SetShortcutsEnabled(!svc.GetShortcutsEnabled()); err != nil {
				slog.Error("toggle shortcuts", "error", err)
			}
		})

	trayMenu.AddSeparator()
	trayMenu.Add("Quit").
		SetAccelerator("CmdOrCtrl+Q").
		OnClick(func(ctx *application.Context) {
			svc.Shutdown()
			wailsApp.Quit()
		})

	systemTray.SetMenu(trayMenu)

	if err := wailsApp.Run(); err != nil {
		slog.Error("run app", "error", err)
	}
}

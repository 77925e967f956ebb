package watch

import (
	"context"
	"os/exec"
	"time"

	"github.com/rs/zerolog"
)

const presenterTimeout = 5 * time.Second

// ExecPresenter shells out to configured commands to raise and tear down
// the blocking UI. The package and app name are exported to the command
// environment as TAGLOCK_PACKAGE and TAGLOCK_APP.
type ExecPresenter struct {
	BlockCommand   string
	UnblockCommand string
	Logger         zerolog.Logger
}

// Block implements gate.Presenter.
func (p *ExecPresenter) Block(packageName, appName string) {
	p.run(p.BlockCommand, packageName, appName)
}

// Unblock implements lock.Notifier; it is called when the lock disengages.
func (p *ExecPresenter) Unblock() {
	p.run(p.UnblockCommand, "", "")
}

func (p *ExecPresenter) run(command, packageName, appName string) {
	if command == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), presenterTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Env = append(cmd.Environ(),
		"TAGLOCK_PACKAGE="+packageName,
		"TAGLOCK_APP="+appName,
	)
	if err := cmd.Run(); err != nil {
		p.Logger.Warn().Err(err).Str("package", packageName).Msg("Presenter command failed")
	}
}

package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/yarkm13/sharewalk/internal/logging"
	"github.com/yarkm13/sharewalk/internal/prompt"
	"github.com/yarkm13/sharewalk/internal/remote/sshfs"
	"github.com/yarkm13/sharewalk/internal/shell"
)

const usage = `usage: sharewalk [options] <url>
where url is in the format [smb:]//server[/share[/dir]]
`

func newApp() *cli.App {
	return &cli.App{
		Name:      "sharewalk",
		Usage:     "browse network shares and mirror them to a local directory",
		ArgsUsage: "<url>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "cmd",
				Aliases: []string{"c"},
				Usage:   "`commands` separated by ';' to run instead of reading the terminal",
				EnvVars: []string{"SHAREWALK_CMD"},
			},
			&cli.PathFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "batch script with one command per line",
				EnvVars: []string{"SHAREWALK_FILE"},
			},
			&cli.Float64Flag{
				Name:    "bandwidth",
				Aliases: []string{"b"},
				Usage:   "download speed cap in `KB/s`",
				EnvVars: []string{"SHAREWALK_BANDWIDTH"},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "echo queued tasks as they run",
			},
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "answer yes to every question",
			},
			&cli.IntFlag{
				Name:    "retries",
				Usage:   "extra attempts for a failed download",
				EnvVars: []string{"SHAREWALK_RETRIES"},
			},
			&cli.PathFlag{
				Name:    "target-dir",
				Aliases: []string{"t"},
				Usage:   "local directory to start in",
				Value:   ".",
				EnvVars: []string{"SHAREWALK_TARGET_DIR"},
			},
			&cli.PathFlag{
				Name:    "identity",
				Aliases: []string{"i"},
				Usage:   "private key for sftp and scp",
				EnvVars: []string{"SHAREWALK_IDENTITY"},
			},
			&cli.PathFlag{
				Name:    "known-hosts",
				Usage:   "known_hosts file for sftp and scp",
				Value:   defaultKnownHosts(),
				EnvVars: []string{"SHAREWALK_KNOWN_HOSTS"},
			},
			&cli.StringFlag{
				Name:    "s3-region",
				Usage:   "region of s3 endpoints",
				EnvVars: []string{"SHAREWALK_S3_REGION"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				Value:   "warn",
				EnvVars: []string{"SHAREWALK_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "console or json",
				Value:   "console",
				EnvVars: []string{"SHAREWALK_LOG_FORMAT"},
			},
			&cli.BoolFlag{
				Name:    "no-color",
				Usage:   "plain prompt",
				EnvVars: []string{"NO_COLOR"},
			},
		},
		Action: run,
	}
}

func defaultKnownHosts() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ssh", "known_hosts")
}

// startURL adds the smb scheme to bare "//server" arguments.
func startURL(arg string) string {
	if strings.HasPrefix(arg, "//") {
		return "smb:" + arg
	}
	return arg
}

func run(c *cli.Context) error {
	if c.NArg() == 0 {
		fmt.Fprint(c.App.Writer, usage)
		return cli.Exit("", 1)
	}
	if err := logging.Init(logging.Config{Level: c.String("log-level"), Format: c.String("log-format")}); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer logging.Sync()
	if c.Bool("no-color") {
		color.NoColor = true
	}

	var queued []string
	if c.IsSet("cmd") {
		queued = append(queued, splitCommands(c.String("cmd"))...)
	}
	if name := c.Path("file"); name != "" {
		lines, err := loadBatchFile(name)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
		}
		queued = append(queued, lines...)
	}
	batch := c.IsSet("cmd") || c.Path("file") != ""
	if batch {
		queued = append(queued, "quit")
	}

	prompter := prompt.New(os.Stdin, os.Stdout)
	var policy prompt.Policy = prompter
	if c.Bool("yes") {
		policy = prompt.AlwaysYes{}
	}

	factories, err := connectorFactories(factoryConfig{
		SSH: sshfs.Config{
			Identity:   c.Path("identity"),
			KnownHosts: c.Path("known-hosts"),
			Policy:     policy,
			Out:        os.Stdout,
		},
		S3Region: c.String("s3-region"),
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}

	sess, err := shell.New(shell.Options{
		Factories:   factories,
		Prompter:    prompter,
		Out:         os.Stdout,
		Policy:      policy,
		LocalDir:    c.Path("target-dir"),
		Bandwidth:   c.Float64("bandwidth") * 1024,
		Retries:     c.Int("retries"),
		Verbose:     c.Bool("verbose"),
		Interactive: !batch,
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	defer sess.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()
	go func() {
		// A second interrupt kills the process.
		<-ctx.Done()
		stop()
	}()

	if err := sess.Open(ctx, startURL(c.Args().First())); err != nil {
		logging.Debug("initial location failed", zap.Error(err))
		return cli.Exit("", 1)
	}
	sess.Enqueue(queued...)
	if err := sess.Run(ctx); err != nil && ctx.Err() == nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	return nil
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

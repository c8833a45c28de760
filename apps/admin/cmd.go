package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	echoapi "github.com/trezcool/syllabus/apps/api/echo"
	"github.com/trezcool/syllabus/core"
	"github.com/trezcool/syllabus/core/degree"
	"github.com/trezcool/syllabus/core/task"
)

var (
	errHelp       = errors.New("help provided")
	errNoDatabase = errors.New("no SQL database (database.engine=memory)")
)

type commandLine struct {
	db        *sql.DB // nil in memory
	taskSvc   *task.Service
	degreeSvc *degree.Service
	auth      *echoapi.Auth
	logger    core.Logger
	scheduler core.SchedulerConfig
	out       io.Writer
	now       func() time.Time
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  adddegree -name NAME - create a degree")
	fmt.Fprintln(cli.out, "  import -file FILE [-group ID] - create the tasks of a YAML file at once")
	fmt.Fprintln(cli.out, "  schedule [-group ID] [-at TIME] - print the schedule of a group")
	fmt.Fprintln(cli.out, "  watch [-group ID] [-interval DURATION] [-for DURATION] - print the status changes of a group")
	fmt.Fprintln(cli.out, "  token -username USERNAME [-email EMAIL] [-admin] [-expires DURATION] - issue an API token")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addDegreeCmd := flag.NewFlagSet("adddegree", flag.ExitOnError)
	addDegreeName := addDegreeCmd.String("name", "", "The degree's name.")

	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	importPath := importCmd.String("file", "", "The YAML file listing the tasks.")
	importGroup := importCmd.String("group", "", "The degree of the tasks without group_id (ID or name).")

	scheduleCmd := flag.NewFlagSet("schedule", flag.ExitOnError)
	scheduleGroup := scheduleCmd.String("group", "", "The degree (ID or name). Global tasks when empty.")
	scheduleAt := scheduleCmd.String("at", "", "Classify the tasks at this time instead of now.")

	watchCmd := flag.NewFlagSet("watch", flag.ExitOnError)
	watchGroup := watchCmd.String("group", "", "The degree (ID or name). Global tasks when empty.")
	watchInterval := watchCmd.Duration("interval", 0, "Poll interval (scheduler.pollInterval when 0).")
	watchFor := watchCmd.Duration("for", 0, "Stop after this long (until interrupted when 0).")

	tokenCmd := flag.NewFlagSet("token", flag.ExitOnError)
	tokenUsername := tokenCmd.String("username", "", "The token holder.")
	tokenEmail := tokenCmd.String("email", "", "The token holder's email.")
	tokenAdmin := tokenCmd.Bool("admin", false, "Allow editing the tasks.")
	tokenExpires := tokenCmd.Duration("expires", echoapi.TokenExpirationDelta, "Token lifetime.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "adddegree":
		if err := addDegreeCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addDegreeName == "" {
			addDegreeCmd.Usage()
			return errHelp
		}
		return cli.addDegree(*addDegreeName)
	case "import":
		if err := importCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *importPath == "" {
			importCmd.Usage()
			return errHelp
		}
		return cli.importTasks(*importPath, *importGroup)
	case "schedule":
		if err := scheduleCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.schedule(*scheduleGroup, *scheduleAt)
	case "watch":
		if err := watchCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.watch(*watchGroup, *watchInterval, *watchFor)
	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenUsername == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(*tokenUsername, *tokenEmail, *tokenAdmin, *tokenExpires)
	default:
		cli.printUsage()
		return errHelp
	}
}

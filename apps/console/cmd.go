package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/semed/merenda/core"
	"github.com/semed/merenda/core/flow"
	"github.com/semed/merenda/core/responsible"
	apisvc "github.com/semed/merenda/services/api"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	client *apisvc.Client
	book   *responsible.Book
	logger core.Logger
	flow   *flow.Options
	out    io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  login -email EMAIL - log in; the password will be prompted next")
	fmt.Fprintln(cli.out, "  logout - forget the stored session")
	fmt.Fprintln(cli.out, "  whoami - show the logged in account")
	fmt.Fprintln(cli.out, "  responsibles list - list the quick-pick responsibles")
	fmt.Fprintln(cli.out, "  responsibles add -name NAME [-phone PHONE] - add a responsible")
	fmt.Fprintln(cli.out, "  responsibles remove -id ID - remove a responsible")
	fmt.Fprintln(cli.out, "  responsibles pick -query TEXT - find responsibles by name or phone")
	fmt.Fprintln(cli.out, "  conference -slug SLUG -token TOKEN [-delivery ID] -answers FILE - confer a delivery")
	fmt.Fprintln(cli.out, "  consumption -slug SLUG -token TOKEN -answers FILE - register consumption")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	loginCmd := flag.NewFlagSet("login", flag.ContinueOnError)
	loginEmail := loginCmd.String("email", "", "The account email. The password will be prompted next.")

	conferenceCmd := flag.NewFlagSet("conference", flag.ContinueOnError)
	conferenceSlug := conferenceCmd.String("slug", "", "The school's public slug.")
	conferenceToken := conferenceCmd.String("token", "", "The school's public token.")
	conferenceDelivery := conferenceCmd.String("delivery", "", "The delivery ID. Defaults to the latest delivery.")
	conferenceAnswers := conferenceCmd.String("answers", "", "YAML file with the quantities and signatures.")

	consumptionCmd := flag.NewFlagSet("consumption", flag.ContinueOnError)
	consumptionSlug := consumptionCmd.String("slug", "", "The school's public slug.")
	consumptionToken := consumptionCmd.String("token", "", "The school's public token.")
	consumptionAnswers := consumptionCmd.String("answers", "", "YAML file with the date and consumed quantities.")

	for _, fs := range []*flag.FlagSet{loginCmd, conferenceCmd, consumptionCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "login":
		if err := loginCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *loginEmail == "" {
			loginCmd.Usage()
			return errHelp
		}
		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(stdinFd)
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			loginCmd.Usage()
			return errHelp
		}
		return cli.login(*loginEmail, string(pwd))
	case "logout":
		return cli.logout()
	case "whoami":
		return cli.whoami()
	case "responsibles":
		return cli.responsibles(args[2:])
	case "conference":
		if err := conferenceCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *conferenceSlug == "" || *conferenceToken == "" || *conferenceAnswers == "" {
			conferenceCmd.Usage()
			return errHelp
		}
		return cli.conference(*conferenceSlug, *conferenceToken, *conferenceDelivery, *conferenceAnswers)
	case "consumption":
		if err := consumptionCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *consumptionSlug == "" || *consumptionToken == "" || *consumptionAnswers == "" {
			consumptionCmd.Usage()
			return errHelp
		}
		return cli.consumption(*consumptionSlug, *consumptionToken, *consumptionAnswers)
	default:
		cli.printUsage()
		return errHelp
	}
}

// printFieldErrors shows local validation failures one per line.
func (cli *commandLine) printFieldErrors(err error) {
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		return
	}
	for _, f := range vErr.Fields {
		fmt.Fprintf(cli.out, "  %s: %s\n", f.Field, f.Error)
	}
}

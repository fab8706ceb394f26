package main

import (
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/semed/merenda/core/responsible"
)

func (cli *commandLine) printResponsibles(rs []responsible.Responsible) {
	if len(rs) == 0 {
		fmt.Fprintln(cli.out, "No responsibles")
		return
	}
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	for _, r := range rs {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.ID, r.Name, r.Phone)
	}
	_ = w.Flush()
}

func (cli *commandLine) responsibles(args []string) error {
	usage := func(w io.Writer) {
		fmt.Fprintln(w, "Usage: responsibles list | add -name NAME [-phone PHONE] | remove -id ID | pick -query TEXT")
	}
	if len(args) < 1 {
		usage(cli.out)
		return errHelp
	}

	addCmd := flag.NewFlagSet("responsibles add", flag.ContinueOnError)
	addName := addCmd.String("name", "", "The responsible's name.")
	addPhone := addCmd.String("phone", "", "The responsible's phone.")

	removeCmd := flag.NewFlagSet("responsibles remove", flag.ContinueOnError)
	removeID := removeCmd.String("id", "", "The responsible's ID.")

	pickCmd := flag.NewFlagSet("responsibles pick", flag.ContinueOnError)
	pickQuery := pickCmd.String("query", "", "Part of the name or phone.")

	for _, fs := range []*flag.FlagSet{addCmd, removeCmd, pickCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[0] {
	case "list":
		cli.printResponsibles(cli.book.List())
		return nil
	case "add":
		if err := addCmd.Parse(args[1:]); err != nil {
			return err
		}
		r, err := cli.book.Add(*addName, *addPhone)
		if err != nil {
			cli.printFieldErrors(err)
			return err
		}
		fmt.Fprintf(cli.out, "Added %s (%s)\n", r.Name, r.ID)
		return nil
	case "remove":
		if err := removeCmd.Parse(args[1:]); err != nil {
			return err
		}
		if *removeID == "" {
			removeCmd.Usage()
			return errHelp
		}
		if err := cli.book.Remove(*removeID); err != nil {
			return err
		}
		fmt.Fprintln(cli.out, "Removed")
		return nil
	case "pick":
		if err := pickCmd.Parse(args[1:]); err != nil {
			return err
		}
		cli.printResponsibles(cli.book.Match(*pickQuery))
		return nil
	default:
		usage(cli.out)
		return errHelp
	}
}

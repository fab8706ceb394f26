package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) login(email, password string) error {
	if _, err := cli.client.Login(context.Background(), email, password); err != nil {
		return err
	}
	me, err := cli.client.Me(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Logged in as %s <%s>\n", me.Name, me.Email)
	return nil
}

func (cli *commandLine) logout() error {
	if err := cli.client.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(cli.out, "Logged out")
	return nil
}

func (cli *commandLine) whoami() error {
	me, err := cli.client.Me(context.Background())
	if err != nil {
		return err
	}
	cli.logger.Debug("current account", me)
	fmt.Fprintf(cli.out, "%s <%s>\n", me.Name, me.Email)
	return nil
}

// Command routerctl is a thin GraphQL client for routerd's management
// endpoint: a urfave/cli command tree whose subcommands each build and
// send one request over machinebox/graphql against mgmtgql's HTTP
// endpoint.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/machinebox/graphql"
	"github.com/urfave/cli/v2"

	"github.com/routerctl/routerctl/core/version"
)

func newClient(c *cli.Context) *graphql.Client {
	return graphql.NewClient(c.String("server"))
}

func run(c *cli.Context, query string, vars map[string]any, out any) error {
	client := newClient(c)
	req := graphql.NewRequest(query)
	for k, v := range vars {
		req.Var(k, v)
	}
	return client.Run(context.Background(), req, out)
}

func main() {
	app := &cli.App{
		Name:    "routerctl",
		Usage:   "control a routerd instance over its management endpoint",
		Version: version.V.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "server", Value: "http://localhost:3030/graphql", Usage: "management endpoint URL"},
		},
		Commands: []*cli.Command{
			portAddCommand,
			portDelCommand,
			portListCommand,
			portGetCommand,
			nhAddCommand,
			nhListCommand,
		},
	}

	if e := app.Run(os.Args); e != nil {
		fmt.Fprintln(os.Stderr, "routerctl:", e)
		os.Exit(1)
	}
}

var portAddCommand = &cli.Command{
	Name:      "port-add",
	Usage:     "probe a NIC and register it as a port",
	ArgsUsage: "<devargs> <name>",
	Action: func(c *cli.Context) error {
		if c.Args().Len() != 2 {
			return cli.Exit("usage: port-add <devargs> <name>", 1)
		}
		var resp struct {
			PortAdd map[string]any `json:"portAdd"`
		}
		e := run(c, `mutation($devArgs:String!,$name:String!){
			portAdd(devArgs:$devArgs,name:$name){name portId mac mtu nRxq nTxq}
		}`, map[string]any{"devArgs": c.Args().Get(0), "name": c.Args().Get(1)}, &resp)
		if e != nil {
			return e
		}
		fmt.Printf("%+v\n", resp.PortAdd)
		return nil
	},
}

var portDelCommand = &cli.Command{
	Name:      "port-del",
	Usage:     "remove a port by name",
	ArgsUsage: "<name>",
	Action: func(c *cli.Context) error {
		if c.Args().Len() != 1 {
			return cli.Exit("usage: port-del <name>", 1)
		}
		var resp struct {
			PortDel bool `json:"portDel"`
		}
		e := run(c, `mutation($name:String!){ portDel(name:$name) }`,
			map[string]any{"name": c.Args().Get(0)}, &resp)
		if e != nil {
			return e
		}
		fmt.Println("ok")
		return nil
	},
}

var portListCommand = &cli.Command{
	Name:  "port-list",
	Usage: "list all ports",
	Action: func(c *cli.Context) error {
		var resp struct {
			Ports []map[string]any `json:"ports"`
		}
		if e := run(c, `{ ports { name portId mac mtu up running nRxq nTxq } }`, nil, &resp); e != nil {
			return e
		}
		for _, p := range resp.Ports {
			fmt.Printf("%+v\n", p)
		}
		return nil
	},
}

var portGetCommand = &cli.Command{
	Name:      "port-get",
	Usage:     "show one port by name",
	ArgsUsage: "<name>",
	Action: func(c *cli.Context) error {
		if c.Args().Len() != 1 {
			return cli.Exit("usage: port-get <name>", 1)
		}
		var resp struct {
			Port map[string]any `json:"port"`
		}
		e := run(c, `query($name:String!){ port(name:$name){ name portId mac mtu up running nRxq nTxq } }`,
			map[string]any{"name": c.Args().Get(0)}, &resp)
		if e != nil {
			return e
		}
		fmt.Printf("%+v\n", resp.Port)
		return nil
	},
}

var nhAddCommand = &cli.Command{
	Name:      "nh-add",
	Usage:     "add an IPv4 next-hop",
	ArgsUsage: "<host> <ifaceId> <mac>",
	Action: func(c *cli.Context) error {
		if c.Args().Len() != 3 {
			return cli.Exit("usage: nh-add <host> <ifaceId> <mac>", 1)
		}
		ifaceID, e := strconv.Atoi(c.Args().Get(1))
		if e != nil {
			return cli.Exit("ifaceId must be an integer", 1)
		}
		var resp struct {
			NextHopAdd bool `json:"nextHopAdd"`
		}
		e = run(c, `mutation($host:String!,$ifaceId:Int!,$mac:String!){
			nextHopAdd(host:$host,ifaceId:$ifaceId,mac:$mac)
		}`, map[string]any{"host": c.Args().Get(0), "ifaceId": ifaceID, "mac": c.Args().Get(2)}, &resp)
		if e != nil {
			return e
		}
		fmt.Println("ok")
		return nil
	},
}

var nhListCommand = &cli.Command{
	Name:  "nh-list",
	Usage: "list all IPv4 next-hops",
	Action: func(c *cli.Context) error {
		var resp struct {
			NextHops []map[string]any `json:"nextHops"`
		}
		if e := run(c, `{ nextHops { host mac ifaceId refCount ageSec ageValid } }`, nil, &resp); e != nil {
			return e
		}
		for _, n := range resp.NextHops {
			fmt.Printf("%+v\n", n)
		}
		return nil
	},
}

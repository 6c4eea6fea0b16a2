// Command routerd runs the control plane as a long-lived daemon: it
// loads a startup config, probes the configured ports, and serves the
// management GraphQL endpoint until terminated.
//
// Follows the common shape of a small main that parses flags, builds
// the process-wide component handles, and blocks serving a management
// endpoint, with real device probing replaced by simdrv.
package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/routerctl/routerctl/core/logging"
	"github.com/routerctl/routerctl/core/macaddr"
	"github.com/routerctl/routerctl/core/version"
	"github.com/routerctl/routerctl/core/yamlflag"
	"github.com/routerctl/routerctl/ctlapi"
	"github.com/routerctl/routerctl/ctlconfig"
	"github.com/routerctl/routerctl/drvapi"
	"github.com/routerctl/routerctl/iface"
	"github.com/routerctl/routerctl/ifport"
	"github.com/routerctl/routerctl/ifvlan"
	"github.com/routerctl/routerctl/ip4nh"
	"github.com/routerctl/routerctl/ip4route"
	"github.com/routerctl/routerctl/mgmtgql"
	"github.com/routerctl/routerctl/simdrv"
	"github.com/routerctl/routerctl/worker"
)

var logger = logging.New("routerd")

func newSimDevice(devArgs string) (drvapi.Device, error) {
	return simdrv.New(simdrv.Config{DevArgs: devArgs})
}

func main() {
	logger.Sugar().Infof("routerd %s", version.V)

	configPath := flag.String("config", "", "path to the daemon's YAML startup config")
	listen := flag.String("listen", "", "GraphQL management endpoint address, overrides config")
	var macOverride macaddr.Flag
	flag.Var(&macOverride, "mac", "override the MAC address probed ports start with (testing only)")

	var cfg ctlconfig.Config
	flag.Var(yamlflag.New(&cfg), "set", "YAML fragment of startup config, or @file.yaml; takes priority over -config")
	flag.Parse()

	if *configPath != "" {
		loaded, e := ctlconfig.Load(*configPath)
		if e != nil {
			logger.Fatal(e.Error())
		}
		if cfg.ListenGQL == "" {
			cfg.ListenGQL = loaded.ListenGQL
		}
		cfg.Ports = append(loaded.Ports, cfg.Ports...)
	}
	if *listen != "" {
		cfg.ListenGQL = *listen
	}

	reg := iface.NewRegistry()
	workers := worker.NewSet()
	ports := ifport.NewManager(reg, workers, newSimDevice)
	vlans := ifvlan.NewManager(reg, ports)
	nh := ip4nh.NewTable()
	routes := ip4route.NewTable(nh)

	svc := &ctlapi.Service{Reg: reg, Ports: ports, Vlans: vlans, NH: nh, Routes: routes}
	dispatcher := ctlapi.NewDispatcher()
	svc.Register(dispatcher)

	for _, p := range cfg.Ports {
		id, e := ports.AddPort(p.DevArgs, p.Name)
		if e != nil {
			logger.Sugar().Fatalf("probe port %s (%s): %v", p.Name, p.DevArgs, e)
		}
		logger.Sugar().Infof("probed port %s as interface %d", p.Name, id)

		if p.NRxq != 0 || p.NTxq != 0 || p.RxqSize != 0 || p.TxqSize != 0 {
			i := reg.FromID(id)
			sizing := &ifport.Info{NRxq: p.NRxq, RxqSize: p.RxqSize, TxqSize: p.TxqSize}
			if e := reg.Set(id, ifport.SetQueueSizing, i.Flags, i.MTU, i.VRF, sizing); e != nil {
				logger.Sugar().Fatalf("apply queue sizing on port %s: %v", p.Name, e)
			}
		}

		if !macOverride.Empty() {
			mac, e := macaddr.Make(macOverride.HardwareAddr)
			if e != nil {
				logger.Sugar().Fatalf("-mac: %v", e)
			}
			i := reg.FromID(id)
			if e := reg.Set(id, ifport.SetMAC, i.Flags, i.MTU, i.VRF, &ifport.Info{MAC: mac}); e != nil {
				logger.Sugar().Fatalf("override MAC on port %s: %v", p.Name, e)
			}
		}
	}

	if cfg.ListenGQL == "" {
		cfg.ListenGQL = "localhost:3030"
	}
	gqlHandler, e := mgmtgql.NewHandler(dispatcher)
	if e != nil {
		logger.Fatal(e.Error())
	}

	srv := &http.Server{Addr: cfg.ListenGQL, Handler: gqlHandler}
	go func() {
		logger.Sugar().Infof("management endpoint listening on %s", cfg.ListenGQL)
		if e := srv.ListenAndServe(); e != nil && e != http.ErrServerClosed {
			logger.Sugar().Fatalf("management endpoint: %v", e)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	srv.Close()
}

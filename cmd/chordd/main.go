// Command chordd runs a single Chord ring participant: peer RPC over
// mTLS, the client wire protocol, and the three maintenance loops.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"chordring/internal/api"
	"chordring/internal/config"
	"chordring/internal/dht"
	"chordring/internal/rpc"
	"chordring/internal/store"
)

var (
	configPath    string
	dhtAddress    string
	apiAddress    string
	bootstrapNode string
	startAPI      bool
)

var systemColor = color.New(color.FgHiCyan)

func main() {
	root := &cobra.Command{
		Use:   "chordd",
		Short: "Run a Chord DHT ring participant",
		RunE:  run,
	}
	root.Flags().StringVar(&configPath, "config", "chordd.yaml", "path to the YAML configuration file")
	root.Flags().StringVar(&dhtAddress, "dht-address", "", "override listen_address for peer RPC")
	root.Flags().StringVar(&apiAddress, "api-address", "", "override api_address for the client wire protocol")
	root.Flags().StringVar(&bootstrapNode, "bootstrap-node", "", "address of an existing ring member to join via")
	root.Flags().BoolVar(&startAPI, "start-api", true, "serve the client wire protocol listener")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dhtAddress != "" {
		cfg.ListenAddress = dhtAddress
	}
	if apiAddress != "" {
		cfg.APIAddress = apiAddress
	}

	logger := log.New(os.Stdout, "chordd: ", log.LstdFlags)

	nodeCfg := dht.Config{
		Bits:        cfg.FingerTableSize,
		MaxSteps:    cfg.MaxSteps,
		MaxSucc:     cfg.MaxSucc,
		FixInterval: cfg.FixInterval,
		// cfg.ReplicaCount is the raw REPLICATION_COUNT from config;
		// dht.Config.ReplicaCount is the total copies written per key,
		// REPLICATION_COUNT+1 per spec.md:111.
		ReplicaCount: cfg.ReplicaCount + 1,
		DefaultTTL:   cfg.DefaultTTL,
	}

	self := dht.HashNodeRef(cfg.ListenAddress, nodeCfg.Bits)
	secKey := cfg.SecKey
	if secKey == "" {
		secKey = self.ID
	}
	st, err := store.New(store.NewMemoryBackend(), secKey, self.ID, nodeCfg.Bits)
	if err != nil {
		return fmt.Errorf("chordd: building store: %w", err)
	}

	clientTLS, err := rpc.LoadClientTLSConfig(cfg.TLSDir)
	if err != nil {
		return fmt.Errorf("chordd: loading client TLS material: %w", err)
	}
	serverTLS, err := rpc.LoadServerTLSConfig(cfg.TLSDir)
	if err != nil {
		return fmt.Errorf("chordd: loading server TLS material: %w", err)
	}

	transport := rpc.NewClient(clientTLS)
	node := dht.New(cfg.ListenAddress, nodeCfg, st, transport, logger)

	rpcServer := rpc.NewServer(cfg.ListenAddress, node, serverTLS, logger)
	go func() {
		if err := rpcServer.Start(); err != nil {
			logger.Fatalf("rpc server: %v", err)
		}
	}()

	if bootstrapNode != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := node.Join(ctx, bootstrapNode)
		cancel()
		if err != nil {
			return fmt.Errorf("chordd: joining via %s: %w", bootstrapNode, err)
		}
	} else {
		node.Create()
	}

	maintCtx, stopMaintenance := context.WithCancel(context.Background())
	go node.RunMaintenance(maintCtx)

	var apiServer *api.Server
	if startAPI {
		apiServer = api.NewServer(cfg.APIAddress, node, logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Printf("api server: %v", err)
			}
		}()
	}

	systemColor.Println(node.Dump())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Println("shutting down")
	stopMaintenance()
	if apiServer != nil {
		apiServer.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return rpcServer.Stop(ctx)
}

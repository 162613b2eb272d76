package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"shopsync/internal/client"
	"shopsync/internal/config"
	"shopsync/internal/logging"
)

type app struct {
	agent    *client.Agent
	api      *client.GraphQLClient
	auth     *client.AuthService
	checkout *client.CheckoutService
	timeout  time.Duration
	out      io.Writer
}

func main() {
	cfg := config.ClientFromEnv()
	var (
		token    string
		username string
		password string
	)
	flag.StringVar(&cfg.HTTPURL, "http", cfg.HTTPURL, "GraphQL HTTP endpoint")
	flag.StringVar(&cfg.WSURL, "ws", cfg.WSURL, "GraphQL WebSocket endpoint")
	flag.StringVar(&token, "token", os.Getenv("SHOPSYNC_TOKEN"), "Bearer token to start with")
	flag.StringVar(&username, "user", "", "Log in through the auth service as this user")
	flag.StringVar(&password, "password", "", "Password for -user")
	flag.Parse()

	logger, err := logging.New("development", cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := client.NewGraphQLClient(cfg.HTTPURL, cfg.RequestTimeout)
	transport := client.NewTransport(cfg.WSURL, logger.Named("transport"),
		client.WithStateListener(func(_ uint64, s client.State) {
			logger.Info("connection state", zap.Stringer("state", s))
		}),
	)
	defer transport.Dispose()

	a := &app{
		agent:    client.NewAgent(api, transport, logger.Named("agent")),
		api:      api,
		auth:     client.NewAuthService(cfg.AuthURL, cfg.RequestTimeout),
		checkout: client.NewCheckoutService(cfg.CheckoutURL, cfg.RequestTimeout),
		timeout:  cfg.RequestTimeout,
		out:      os.Stdout,
	}
	a.agent.OnChange(a.print)

	if username != "" {
		if err := a.signin(ctx, username, password); err != nil {
			logger.Fatal("sign in", zap.Error(err))
		}
	} else if token != "" {
		if err := a.login(ctx, token); err != nil {
			logger.Fatal("login", zap.Error(err))
		}
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	fmt.Fprintln(a.out, "type help for commands")
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			cmd, err := parseCommand(line)
			if errors.Is(err, errEmptyLine) {
				continue
			}
			if err != nil {
				fmt.Fprintln(a.out, err)
				continue
			}
			if cmd.name == "quit" {
				return
			}
			if err := a.exec(ctx, cmd); err != nil {
				fmt.Fprintf(a.out, "%s failed: %v\n", cmd.name, err)
			}
		}
	}
}

func (a *app) exec(ctx context.Context, cmd command) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	switch cmd.name {
	case "add":
		return a.agent.Add(ctx, cmd.args[0])
	case "dec":
		return a.agent.Decrement(ctx, cmd.args[0])
	case "rm":
		return a.agent.Remove(ctx, cmd.args[0])
	case "clear":
		return a.agent.Clear(ctx)
	case "fetch":
		return a.agent.Fetch(ctx)
	case "show":
		a.print(a.agent.Snapshot())
	case "products":
		page, err := a.api.Products(ctx, nil, nil, nil)
		if err != nil {
			return err
		}
		for _, p := range page.Items {
			fmt.Fprintf(a.out, "%4s  %9s  %s\n", p.ID, p.Price.StringFixed(2), p.Title)
		}
	case "login":
		return a.login(ctx, cmd.args[0])
	case "signin":
		return a.signin(ctx, cmd.args[0], cmd.args[1])
	case "logout":
		a.agent.Logout()
		fmt.Fprintln(a.out, "logged out")
	case "checkout":
		return a.submit(ctx, cmd.args)
	case "help":
		fmt.Fprintln(a.out, helpText)
	}
	return nil
}

func (a *app) signin(ctx context.Context, username, password string) error {
	token, err := a.auth.Login(ctx, username, password)
	if err != nil {
		return err
	}
	return a.login(ctx, token)
}

func (a *app) login(ctx context.Context, token string) error {
	if err := a.agent.SetCredential(ctx, token); err != nil {
		if !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		// the agent keeps reconnecting and will pick up pushes once it is through
		fmt.Fprintln(a.out, "server not reachable yet; live updates start once it is")
		return nil
	}
	return a.agent.Fetch(ctx)
}

func (a *app) submit(ctx context.Context, args []string) error {
	name, email, address, err := parseCustomer(args)
	if err != nil {
		return err
	}
	snap := a.agent.Snapshot()
	order := client.NewOrder(snap, client.Customer{Name: name, Email: email, Address: address}, time.Now())
	resp, err := a.checkout.Submit(ctx, order)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "order accepted (%d bytes of confirmation)\n", len(resp))
	return a.agent.Clear(ctx)
}

func (a *app) print(snap client.Snapshot) {
	if snap.ItemsCount() == 0 {
		fmt.Fprintln(a.out, "cart is empty")
		return
	}
	for _, it := range snap.Items {
		title := "(no longer available)"
		if it.Product != nil {
			title = it.Product.Title
		}
		fmt.Fprintf(a.out, "%4s  x%-3d %s\n", it.ProductID, it.Quantity, title)
	}
	fmt.Fprintf(a.out, "%d item(s), total %s\n", snap.TotalCount(), snap.TotalAmount())
}

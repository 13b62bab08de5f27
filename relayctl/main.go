package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"
	"github.com/pelletier/go-toml/v2"

	"github.com/relaychat/relay"
)

const DefaultApiUrl = "https://slack.com/api"

const Version = "0.1.0"

// Config is the relayctl configuration stored in relayctl.toml.
type Config struct {
	ApiUrl string `toml:"api_url"`
	Token  string `toml:"token"`

	Connect struct {
		AutoReconnect            bool `toml:"auto_reconnect"`
		PingIntervalSeconds      int  `toml:"ping_interval_seconds"`
		InactivityTimeoutSeconds int  `toml:"inactivity_timeout_seconds"`
		SimpleLatest             bool `toml:"simple_latest"`
		NoUnreads                bool `toml:"no_unreads"`
		MpimAware                bool `toml:"mpim_aware"`
	} `toml:"connect"`
}

func main() {
	usage := fmt.Sprintf(
		`Relay client mirror.

The default api url is:
    api_url: %s

Usage:
    relayctl watch [--config=<config>] [--token=<token>]
        [--api_url=<api_url>]
        [--reconnect]
    relayctl send --channel=<channel> --text=<text> [--config=<config>] [--token=<token>]
        [--api_url=<api_url>]

Options:
    -h --help              Show this screen.
    --version              Show version.
    --config=<config>      Config file path [default: relayctl.toml].
    --token=<token>        Auth token. Overrides the config file.
    --api_url=<api_url>
    --reconnect            Reconnect and re-hydrate after a transport loss.
    --channel=<channel>
    --text=<text>`,
		DefaultApiUrl,
	)

	opts, err := docopt.ParseArgs(usage, os.Args[1:], Version)
	if err != nil {
		panic(err)
	}

	if watch_, _ := opts.Bool("watch"); watch_ {
		watch(opts)
	} else if send_, _ := opts.Bool("send"); send_ {
		send(opts)
	}
}

func loadConfig(opts docopt.Opts) *Config {
	config := &Config{}

	configPath, _ := opts.String("--config")
	if data, err := os.ReadFile(configPath); err == nil {
		if err := toml.Unmarshal(data, config); err != nil {
			fmt.Fprintf(os.Stderr, "bad config file %s: %s\n", configPath, err)
			os.Exit(1)
		}
	}

	if tokenAny := opts["--token"]; tokenAny != nil {
		config.Token = tokenAny.(string)
	}
	if apiUrlAny := opts["--api_url"]; apiUrlAny != nil {
		config.ApiUrl = apiUrlAny.(string)
	}
	if config.ApiUrl == "" {
		config.ApiUrl = DefaultApiUrl
	}
	if config.Token == "" {
		fmt.Fprintln(os.Stderr, "an auth token is required (--token or config file)")
		os.Exit(1)
	}
	return config
}

func connectSettings(config *Config, opts docopt.Opts) *relay.ConnectSettings {
	settings := relay.DefaultConnectSettings()
	settings.SimpleLatest = config.Connect.SimpleLatest
	settings.NoUnreads = config.Connect.NoUnreads
	settings.MpimAware = config.Connect.MpimAware
	settings.AutoReconnect = config.Connect.AutoReconnect
	if reconnect_, _ := opts.Bool("--reconnect"); reconnect_ {
		settings.AutoReconnect = true
	}
	if 0 < config.Connect.PingIntervalSeconds {
		settings.PingInterval = time.Duration(config.Connect.PingIntervalSeconds) * time.Second
	}
	if 0 < config.Connect.InactivityTimeoutSeconds {
		settings.InactivityTimeout = time.Duration(config.Connect.InactivityTimeoutSeconds) * time.Second
	}
	return settings
}

func watch(opts docopt.Opts) {
	config := loadConfig(opts)

	client, err := relay.NewClient(config.ApiUrl, config.Token)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer client.Close()

	client.AddNotificationCallback(func(notification *relay.Notification) {
		switch notification.Name {
		case relay.NotificationMessageReceived:
			fmt.Printf("[%s] <%s> %s\n",
				notification.Message.Channel,
				notification.Message.User,
				notification.Message.Text,
			)
		case relay.NotificationClientDisconnected:
			fmt.Println("[disconnected]")
		default:
			fmt.Printf("[%s]\n", notification.Name)
		}
	})

	client.Connect(connectSettings(config, opts))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	<-sig
}

func send(opts docopt.Opts) {
	config := loadConfig(opts)
	channel, _ := opts.String("--channel")
	text, _ := opts.String("--text")

	client, err := relay.NewClient(config.ApiUrl, config.Token)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer client.Close()

	sent := make(chan struct{}, 1)
	client.AddNotificationCallback(func(notification *relay.Notification) {
		if notification.Name == relay.NotificationMessageSent {
			sent <- struct{}{}
		}
	})

	settings := connectSettings(config, opts)
	client.Connect(settings)

	// wait for the session to go live, send, then wait for the echo
	deadline := time.After(30 * time.Second)
	for client.State() != relay.ClientStateLive {
		select {
		case <-deadline:
			fmt.Fprintln(os.Stderr, "connect timeout")
			os.Exit(1)
		case <-time.After(100 * time.Millisecond):
		}
	}
	client.SendMessage(channel, text)

	select {
	case <-sent:
	case <-time.After(10 * time.Second):
		fmt.Fprintln(os.Stderr, "send not confirmed")
		os.Exit(1)
	}
}

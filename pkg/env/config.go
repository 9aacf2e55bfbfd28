// Package env provides the common configuration of the commands.
package env

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"

	"github.com/robotalks/uartdma/pkg/uart"
)

// Config provides the options to open ports and reach the broker.
type Config struct {
	// Devices lists the serial devices to open.
	Devices DeviceList
	Baud    uint
	// Timeout bounds the wait for a response.
	Timeout time.Duration
	// Interval between polls, zero polls continuously.
	Interval time.Duration

	Slots      int
	BufferSize int

	// BrokerURL specifies the MQTT broker and topic prefix,
	// e.g. mqtt://host:port/topic-prefix/
	BrokerURL string
	// Node names this machine in topics, the machine id by default.
	Node string
}

var defaultConfig = Config{
	Devices:    DeviceList{5},
	Baud:       3000000,
	Timeout:    5 * time.Millisecond,
	Interval:   time.Millisecond,
	Slots:      uart.DefaultSlots,
	BufferSize: uart.DefaultBufferSize,
	BrokerURL:  "mqtt://localhost:1883/uartdma/",
}

func init() {
	if val := os.Getenv("UARTDMA_DEVICE"); val != "" {
		if err := defaultConfig.Devices.Set(val); err != nil {
			glog.Warningf("UARTDMA_DEVICE: %v", err)
		}
	}
	if val := os.Getenv("UARTDMA_BAUD"); val != "" {
		if baud, err := strconv.ParseUint(val, 10, 32); err == nil {
			defaultConfig.Baud = uint(baud)
		} else {
			glog.Warningf("UARTDMA_BAUD: %v", err)
		}
	}
	durationFromEnv("UARTDMA_TIMEOUT", &defaultConfig.Timeout)
	durationFromEnv("UARTDMA_INTERVAL", &defaultConfig.Interval)
	if val := os.Getenv("UARTDMA_BROKER_URL"); val != "" {
		defaultConfig.BrokerURL = val
	}
	if val := os.Getenv("UARTDMA_NODE"); val != "" {
		defaultConfig.Node = val
	}
}

func durationFromEnv(name string, d *time.Duration) {
	val := os.Getenv(name)
	if val == "" {
		return
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		glog.Warningf("%s: %v", name, err)
		return
	}
	*d = parsed
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.Var(&defaultConfig.Devices, "dev", "Serial devices to open, comma separated.")
	flag.UintVar(&defaultConfig.Baud, "baud", defaultConfig.Baud, "Baud rate.")
	flag.DurationVar(&defaultConfig.Timeout, "timeout", defaultConfig.Timeout, "Response timeout.")
	flag.DurationVar(&defaultConfig.Interval, "interval", defaultConfig.Interval, "Polling interval.")
	flag.IntVar(&defaultConfig.Slots, "slots", defaultConfig.Slots, "Number of port slots.")
	flag.IntVar(&defaultConfig.BufferSize, "bufsize", defaultConfig.BufferSize, "DMA buffer size per direction.")
	flag.StringVar(&defaultConfig.BrokerURL, "broker", defaultConfig.BrokerURL, "MQTT broker URL.")
	flag.StringVar(&defaultConfig.Node, "node", defaultConfig.Node, "Node name in topics.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	conf.Devices = append(DeviceList(nil), defaultConfig.Devices...)
	return &conf
}

// TableConfig returns the uart.Config of the settings.
func (c *Config) TableConfig() uart.Config {
	return uart.Config{Slots: c.Slots, BufferSize: c.BufferSize}
}

// NodeName returns Node, or an id derived from the machine id.
func (c *Config) NodeName() string {
	if c.Node != "" {
		return c.Node
	}
	id, err := machineid.ProtectedID("uartdma")
	if err != nil {
		glog.Warningf("machine id: %v", err)
		if host, err := os.Hostname(); err == nil {
			return host
		}
		return "local"
	}
	return id[:12]
}

// DeviceList is a flag.Value of comma separated device ids.
type DeviceList []int

// String implements flag.Value.
func (l *DeviceList) String() string {
	strs := make([]string, len(*l))
	for n, dev := range *l {
		strs[n] = strconv.Itoa(dev)
	}
	return strings.Join(strs, ",")
}

// Set implements flag.Value.
func (l *DeviceList) Set(val string) error {
	var devs DeviceList
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item == "" {
			continue
		}
		dev, err := strconv.Atoi(item)
		if err != nil || dev < 0 {
			return fmt.Errorf("invalid device %q", item)
		}
		devs = append(devs, dev)
	}
	if len(devs) == 0 {
		return fmt.Errorf("no device in %q", val)
	}
	*l = devs
	return nil
}

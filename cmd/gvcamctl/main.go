package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/OverviewCorporation/aravis/internal/applog"
	"github.com/OverviewCorporation/aravis/pkg/device"
)

func main() {
	applog.Init()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: gvcamctl [-config file] <device-ip>")
		os.Exit(1)
	}

	ip := net.ParseIP(flag.Arg(0))
	if ip == nil {
		fmt.Fprintf(os.Stderr, "invalid address %q\n", flag.Arg(0))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := device.Open(ctx, &net.UDPAddr{IP: ip}, device.Options{Config: device.LoadConfig()})
	if err != nil {
		fmt.Fprintf(os.Stderr, "open: %v\n", err)
		os.Exit(1)
	}
	defer sess.Close()

	addr, mask, gw, err := sess.GetCurrentIP()
	if err != nil {
		fmt.Fprintf(os.Stderr, "get current ip: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("current ip:      %s\n", addr)
	fmt.Printf("subnet mask:     %s\n", mask)
	fmt.Printf("default gateway: %s\n", gw)
	fmt.Printf("controller:      %v\n", sess.IsController())
	fmt.Printf("device mode:     big-endian=%v\n", sess.DeviceMode().BigEndian)
}

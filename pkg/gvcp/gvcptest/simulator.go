// Package gvcptest provides an in-process fake GVCP device for exercising
// the retry, pending-ack and bisection state machines in package gvcp and
// package device without a real network or camera.
package gvcptest

import (
	"encoding/binary"
	"net"
	"sync"
	"time"

	"github.com/OverviewCorporation/aravis/pkg/gvcp"
)

// Registers is a simple address-indexed memory backing a Device's
// READ_REGISTER/WRITE_REGISTER and READ_MEMORY/WRITE_MEMORY responses.
type Registers struct {
	mu   sync.Mutex
	data map[uint32][]byte
}

// NewRegisters builds an empty register file.
func NewRegisters() *Registers {
	return &Registers{data: make(map[uint32][]byte)}
}

// Set installs the little scrap of memory value at address, used to seed
// bootstrap registers (XML URLs, device mode, capability flags) before a
// test starts the simulator.
func (r *Registers) Set(address uint32, value []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	buf := make([]byte, len(value))
	copy(buf, value)
	r.data[address] = buf
}

// SetUint32 is a convenience wrapper over Set for register-sized values.
func (r *Registers) SetUint32(address uint32, value uint32) {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, value)
	r.Set(address, buf)
}

func (r *Registers) read(address uint32, size int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	buf := make([]byte, size)
	if existing, ok := r.data[address]; ok {
		copy(buf, existing)
	}
	return buf
}

func (r *Registers) write(address uint32, value []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	buf := make([]byte, len(value))
	copy(buf, value)
	r.data[address] = buf
}

// Behavior lets a test script a per-command response: drop the request
// entirely, answer with N pending-acks first, or delay before answering.
type Behavior struct {
	DropCount    int           // number of requests to silently ignore before answering
	PendingAcks  int           // number of PENDING_ACK frames to send before the real ack
	PendingExtMS uint16        // extension value carried by each pending-ack
	Delay        time.Duration // delay added before the first response of each request
}

// Device is a fake GVCP responder bound to an ephemeral UDP socket.
type Device struct {
	conn      *net.UDPConn
	regs      *Registers
	mu        sync.Mutex
	behaviors map[gvcp.Command]*Behavior
	seen      map[gvcp.Command]int // per-command request counter, for DropCount bookkeeping

	closeOnce sync.Once
	closed    chan struct{}
}

// NewDevice starts a simulator on an ephemeral loopback UDP port backed
// by regs. Call Close when done.
func NewDevice(regs *Registers) (*Device, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		return nil, err
	}
	d := &Device{
		conn:      conn,
		regs:      regs,
		behaviors: make(map[gvcp.Command]*Behavior),
		seen:      make(map[gvcp.Command]int),
		closed:    make(chan struct{}),
	}
	go d.serve()
	return d, nil
}

// Addr is the address the fake device is listening on.
func (d *Device) Addr() *net.UDPAddr { return d.conn.LocalAddr().(*net.UDPAddr) }

// SetBehavior scripts how cmd's requests are answered.
func (d *Device) SetBehavior(cmd gvcp.Command, b Behavior) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.behaviors[cmd] = &b
}

// Close stops the simulator.
func (d *Device) Close() {
	d.closeOnce.Do(func() {
		close(d.closed)
		d.conn.Close()
	})
}

func (d *Device) serve() {
	buf := make([]byte, 2048)
	for {
		n, addr, err := d.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-d.closed:
				return
			default:
				continue
			}
		}
		frame := make([]byte, n)
		copy(frame, buf[:n])
		go d.handle(frame, addr)
	}
}

func (d *Device) handle(frame []byte, addr *net.UDPAddr) {
	if len(frame) < gvcp.HeaderSize {
		return
	}
	command := gvcp.Command(binary.BigEndian.Uint16(frame[2:]))
	id := binary.BigEndian.Uint16(frame[6:])
	body := frame[gvcp.HeaderSize:]

	// Drop counting is per command, not per identifier: each retransmit
	// carries a fresh identifier, so a request's retry count can't be
	// tracked by id.
	d.mu.Lock()
	b := d.behaviors[command]
	count := d.seen[command]
	d.seen[command] = count + 1
	d.mu.Unlock()

	if b != nil {
		if count < b.DropCount {
			return
		}
		if b.Delay > 0 {
			time.Sleep(b.Delay)
		}
		for i := 0; i < b.PendingAcks; i++ {
			d.sendPendingAck(addr, id, b.PendingExtMS)
			time.Sleep(time.Millisecond)
		}
	}

	switch command {
	case gvcp.CommandReadRegisterCmd:
		if len(body) < 4 {
			return
		}
		address := binary.BigEndian.Uint32(body)
		value := d.regs.read(address, 4)
		d.sendAck(addr, gvcp.CommandReadRegisterAck, id, value)
	case gvcp.CommandWriteRegisterCmd:
		if len(body) < 8 {
			return
		}
		address := binary.BigEndian.Uint32(body)
		d.regs.write(address, body[4:8])
		d.sendAck(addr, gvcp.CommandWriteRegisterAck, id, body[4:8])
	case gvcp.CommandReadMemoryCmd:
		if len(body) < 6 {
			return
		}
		address := binary.BigEndian.Uint32(body)
		size := binary.BigEndian.Uint16(body[4:])
		value := d.regs.read(address, int(size))
		d.sendAck(addr, gvcp.CommandReadMemoryAck, id, value)
	case gvcp.CommandWriteMemoryCmd:
		if len(body) < 4 {
			return
		}
		address := binary.BigEndian.Uint32(body)
		data := body[4:]
		d.regs.write(address, data)
		ackBody := make([]byte, 4)
		binary.BigEndian.PutUint32(ackBody, uint32(len(data)))
		d.sendAck(addr, gvcp.CommandWriteMemoryAck, id, ackBody)
	}
}

func (d *Device) sendAck(addr *net.UDPAddr, cmd gvcp.Command, id uint16, payload []byte) {
	buf := make([]byte, gvcp.HeaderSize+len(payload))
	binary.BigEndian.PutUint16(buf[0:], 0)
	binary.BigEndian.PutUint16(buf[2:], uint16(cmd))
	binary.BigEndian.PutUint16(buf[4:], uint16(len(payload)))
	binary.BigEndian.PutUint16(buf[6:], id)
	copy(buf[gvcp.HeaderSize:], payload)
	d.conn.WriteToUDP(buf, addr)
}

func (d *Device) sendPendingAck(addr *net.UDPAddr, id uint16, extMS uint16) {
	buf := make([]byte, gvcp.PendingAckSize)
	binary.BigEndian.PutUint16(buf[0:], 0)
	binary.BigEndian.PutUint16(buf[2:], uint16(gvcp.CommandPendingAck))
	binary.BigEndian.PutUint16(buf[4:], 4)
	binary.BigEndian.PutUint16(buf[6:], id)
	binary.BigEndian.PutUint16(buf[gvcp.HeaderSize+2:], extMS)
	d.conn.WriteToUDP(buf, addr)
}

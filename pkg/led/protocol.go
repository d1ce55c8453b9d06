// Package led implements the LED strip controller's serial packet and the
// handle that writes it.
package led

import "github.com/urmzd/ht32-panel/pkg/device"

// PacketSize is the length of every control packet.
const PacketSize = 5

// Start byte of every packet.
const Start = 0xFA

// Packet encodes a mode change. The controller stores intensity and speed
// inverted (1 is brightest and fastest on the wire), so both are sent as 6-n.
// Off ignores intensity and speed.
func Packet(theme device.LedTheme, intensity, speed int) ([PacketSize]byte, error) {
	if err := device.ValidateLed(theme, intensity, speed); err != nil {
		return [PacketSize]byte{}, err
	}
	p := [PacketSize]byte{Start, byte(theme), byte(6 - intensity), byte(6 - speed)}
	if theme == device.LedOff {
		p[2], p[3] = 0x05, 0x05
	}
	p[4] = checksum(p[:4])
	return p, nil
}

// OffPacket turns the strip off.
func OffPacket() [PacketSize]byte {
	p, _ := Packet(device.LedOff, 1, 1)
	return p
}

func checksum(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum += v
	}
	return sum
}

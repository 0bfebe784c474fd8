package hardware

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// Serial device paths and the board descriptor used to choose between them.
const (
	CPUInfoPath   = "/proc/cpuinfo"
	DevicePi5     = "/dev/ttyAMA0"
	DeviceDefault = "/dev/serial0"

	pi5Marker = "Raspberry Pi 5"
)

// DetectSerialDevice picks the controller's serial device from the board
// descriptor at path. Any failure selects DeviceDefault.
func DetectSerialDevice(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return DeviceDefault
	}
	defer f.Close()

	if isPi5(f) {
		return DevicePi5
	}
	return DeviceDefault
}

// isPi5 inspects the first "Model" line only.
func isPi5(r io.Reader) bool {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "Model") {
			return strings.Contains(line, pi5Marker)
		}
	}
	return false
}

package sysinfo

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// ParseWirelessLevel extracts the signal level column for iface from the
// contents of /proc/net/wireless:
//
//	Inter-| sta-|   Quality        |   Discarded packets               | Missed | WE
//	 face | tus | link level noise |  nwid  crypt   frag  retry   misc | beacon | 22
//	 wlan0: 0000   70.  -40.  -256        0      0      0      0      0        0
func ParseWirelessLevel(table, iface string) (int, error) {
	scanner := bufio.NewScanner(strings.NewReader(table))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		name, rest, found := strings.Cut(line, ":")
		if !found || strings.TrimSpace(name) != iface {
			continue
		}

		fields := strings.Fields(rest)
		if len(fields) < 3 {
			return 0, fmt.Errorf("invalid wireless line for %s: %q", iface, line)
		}
		raw := strings.TrimSuffix(fields[2], ".")
		level, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("parse signal level %q: %w", fields[2], err)
		}
		return int(level), nil
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scan wireless table: %w", err)
	}
	return 0, fmt.Errorf("interface %s not in wireless table", iface)
}

package configplan

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/coreos/go-systemd/v22/unit"
)

// TransformFunc rewrites the text of a configuration file.
type TransformFunc func(content string) (string, error)

// ErrNothingToTransform is returned by a transform that found no content
// worth writing. Execute treats it as a no-op.
var ErrNothingToTransform = errors.New("nothing to transform")

const (
	InterfacesToNetworkd = "debian-interfaces-to-networkd"
	NetworkdToInterfaces = "networkd-to-debian-interfaces"
)

var transforms = map[string]TransformFunc{
	InterfacesToNetworkd: interfacesToNetworkd,
	NetworkdToInterfaces: networkdToInterfaces,
}

// LookupTransform returns the registered transform for key.
func LookupTransform(key string) (TransformFunc, bool) {
	fn, ok := transforms[key]
	return fn, ok
}

// iface is the subset of an interface definition both formats can express.
type iface struct {
	name      string
	dhcp      bool
	addresses []string
	gateway   string
	dns       []string
}

func (i *iface) empty() bool {
	return !i.dhcp && len(i.addresses) == 0 && i.gateway == "" && len(i.dns) == 0
}

// parseInterfaces scans ifupdown syntax token by token. Only the first
// non-loopback stanza is kept because a .network unit matches one link.
func parseInterfaces(content string) *iface {
	var cur *iface
	var netmask string

	finish := func() *iface {
		if cur == nil {
			return nil
		}
		if netmask != "" {
			for i, a := range cur.addresses {
				if !strings.Contains(a, "/") {
					if bits, ok := maskBits(netmask); ok {
						cur.addresses[i] = fmt.Sprintf("%s/%d", a, bits)
					}
				}
			}
		}
		return cur
	}

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "iface":
			if cur != nil && !cur.empty() {
				return finish()
			}
			if len(fields) < 2 || fields[1] == "lo" {
				cur = nil
				continue
			}
			cur = &iface{name: fields[1]}
			netmask = ""
			if len(fields) >= 4 && fields[3] == "dhcp" {
				cur.dhcp = true
			}
		case "address":
			if cur != nil && len(fields) > 1 {
				cur.addresses = append(cur.addresses, fields[1])
			}
		case "netmask":
			if cur != nil && len(fields) > 1 {
				netmask = fields[1]
			}
		case "gateway":
			if cur != nil && len(fields) > 1 {
				cur.gateway = fields[1]
			}
		case "dns-nameservers":
			if cur != nil {
				cur.dns = append(cur.dns, fields[1:]...)
			}
		}
	}
	if cur == nil || cur.empty() {
		return nil
	}
	return finish()
}

func maskBits(mask string) (int, bool) {
	ip := net.ParseIP(mask).To4()
	if ip == nil {
		return 0, false
	}
	ones, bits := net.IPMask(ip).Size()
	if bits == 0 {
		return 0, false
	}
	return ones, true
}

func interfacesToNetworkd(content string) (string, error) {
	ifc := parseInterfaces(content)
	if ifc == nil {
		return "", ErrNothingToTransform
	}

	opts := []*unit.UnitOption{unit.NewUnitOption("Match", "Name", ifc.name)}
	if ifc.dhcp {
		opts = append(opts, unit.NewUnitOption("Network", "DHCP", "yes"))
	}
	for _, a := range ifc.addresses {
		opts = append(opts, unit.NewUnitOption("Network", "Address", a))
	}
	if ifc.gateway != "" {
		opts = append(opts, unit.NewUnitOption("Network", "Gateway", ifc.gateway))
	}
	for _, d := range ifc.dns {
		opts = append(opts, unit.NewUnitOption("Network", "DNS", d))
	}

	out, err := io.ReadAll(unit.Serialize(opts))
	if err != nil {
		return "", fmt.Errorf("failed to serialize network unit: %w", err)
	}
	return string(out), nil
}

func networkdToInterfaces(content string) (string, error) {
	opts, err := unit.Deserialize(strings.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("failed to parse network unit: %w", err)
	}

	var links []*iface
	var cur *iface
	for _, o := range opts {
		switch {
		case o.Section == "Match" && o.Name == "Name":
			cur = &iface{name: ifupdownName(o.Value)}
			links = append(links, cur)
		case o.Section == "Network" && cur != nil:
			switch o.Name {
			case "Address":
				cur.addresses = append(cur.addresses, o.Value)
			case "Gateway":
				cur.gateway = o.Value
			case "DNS":
				cur.dns = append(cur.dns, strings.Fields(o.Value)...)
			case "DHCP":
				switch strings.ToLower(o.Value) {
				case "yes", "true", "ipv4", "both":
					cur.dhcp = true
				}
			}
		}
	}

	var sb strings.Builder
	sb.WriteString("auto lo\niface lo inet loopback\n")
	wrote := false
	for _, l := range links {
		if l.empty() {
			continue
		}
		wrote = true
		fmt.Fprintf(&sb, "\nauto %s\n", l.name)
		if l.dhcp && len(l.addresses) == 0 {
			fmt.Fprintf(&sb, "iface %s inet dhcp\n", l.name)
		} else {
			fmt.Fprintf(&sb, "iface %s inet static\n", l.name)
		}
		for _, a := range l.addresses {
			fmt.Fprintf(&sb, "    address %s\n", a)
		}
		if l.gateway != "" {
			fmt.Fprintf(&sb, "    gateway %s\n", l.gateway)
		}
		if len(l.dns) > 0 {
			fmt.Fprintf(&sb, "    dns-nameservers %s\n", strings.Join(l.dns, " "))
		}
	}
	if !wrote {
		return "", ErrNothingToTransform
	}
	return sb.String(), nil
}

// ifupdownName picks a concrete interface name from a networkd Name= match.
// ifupdown has no globbing, so patterns fall back to eth0.
func ifupdownName(match string) string {
	fields := strings.Fields(match)
	if len(fields) == 0 || strings.ContainsAny(fields[0], "*?[!") {
		return "eth0"
	}
	return fields[0]
}

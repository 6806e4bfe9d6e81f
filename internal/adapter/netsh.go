package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rennerdo30/gateway-switcher/internal/result"
	"github.com/rennerdo30/gateway-switcher/internal/util"
)

// listScript prints physical adapters with their IPv4 configuration as JSON.
const listScript = `Get-NetAdapter | Where-Object { $_.PhysicalMediaType -ne 'Unspecified' -and $_.InterfaceDescription -notlike '*Virtual*' -and $_.InterfaceDescription -notlike '*Loopback*' } | ForEach-Object {
    $adapter = $_
    $ipconfig = Get-NetIPConfiguration -InterfaceIndex $_.InterfaceIndex -ErrorAction SilentlyContinue
    $ipv4 = Get-NetIPAddress -InterfaceIndex $_.InterfaceIndex -AddressFamily IPv4 -ErrorAction SilentlyContinue | Select-Object -First 1
    $dns = Get-DnsClientServerAddress -InterfaceIndex $_.InterfaceIndex -AddressFamily IPv4 -ErrorAction SilentlyContinue
    @{
        Name = $adapter.Name
        Description = $adapter.InterfaceDescription
        Status = [string]$adapter.Status
        IPAddress = if ($ipv4) { $ipv4.IPAddress } else { "" }
        PrefixLength = if ($ipv4) { $ipv4.PrefixLength } else { 0 }
        Gateway = if ($ipconfig.IPv4DefaultGateway) { $ipconfig.IPv4DefaultGateway.NextHop } else { "" }
        DNSServers = if ($dns) { $dns.ServerAddresses } else { @() }
        DHCPEnabled = if ($ipv4) { [string]$ipv4.PrefixOrigin -eq 'Dhcp' } else { $false }
    }
} | ConvertTo-Json -Depth 3`

// netsh configures adapters with netsh and lists them through PowerShell.
type netsh struct {
	run util.CommandRunner
}

func (n *netsh) List(ctx context.Context) ([]Info, error) {
	out, err := n.run(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", listScript)
	if err != nil {
		return nil, err
	}
	return parseAdapterJSON(out)
}

func (n *netsh) runNetsh(ctx context.Context, args ...string) error {
	_, err := n.run(ctx, "netsh", args...)
	return err
}

func (n *netsh) SetDHCP(ctx context.Context, adapter string) result.Result {
	if err := n.runNetsh(ctx, "interface", "ip", "set", "address", "name="+adapter, "source=dhcp"); err != nil {
		return result.Failf("Failed to enable DHCP: %v", err)
	}
	return result.OK("DHCP enabled.")
}

func (n *netsh) SetStatic(ctx context.Context, adapter, ip, mask, gateway string) result.Result {
	if gateway == "" {
		gateway = "none"
	}
	err := n.runNetsh(ctx, "interface", "ip", "set", "address", "name="+adapter, "source=static",
		"addr="+ip, "mask="+mask, "gateway="+gateway)
	if err != nil {
		return result.Failf("Failed to set static IP: %v", err)
	}
	return result.OK("Static IP configured.")
}

func (n *netsh) SetDNSDHCP(ctx context.Context, adapter string) result.Result {
	if err := n.runNetsh(ctx, "interface", "ip", "set", "dns", "name="+adapter, "source=dhcp"); err != nil {
		return result.Failf("Failed to set DHCP DNS: %v", err)
	}
	return result.OK("DNS set to DHCP.")
}

func (n *netsh) SetDNSStatic(ctx context.Context, adapter, primary, secondary string) result.Result {
	err := n.runNetsh(ctx, "interface", "ip", "set", "dns", "name="+adapter, "source=static",
		"addr="+primary, "register=primary")
	if err != nil {
		return result.Failf("Failed to set primary DNS: %v", err)
	}
	if secondary != "" {
		if err := n.runNetsh(ctx, "interface", "ip", "add", "dns", "name="+adapter, "addr="+secondary, "index=2"); err != nil {
			return result.Failf("Failed to set secondary DNS: %v", err)
		}
	}
	return result.OK("Static DNS configured.")
}

type adapterJSON struct {
	Name         string     `json:"Name"`
	Description  string     `json:"Description"`
	Status       string     `json:"Status"`
	IPAddress    string     `json:"IPAddress"`
	PrefixLength int        `json:"PrefixLength"`
	Gateway      string     `json:"Gateway"`
	DNSServers   stringList `json:"DNSServers"`
	DHCPEnabled  bool       `json:"DHCPEnabled"`
}

// parseAdapterJSON decodes ConvertTo-Json output, which is a bare object when
// only one adapter exists.
func parseAdapterJSON(data []byte) ([]Info, error) {
	data = []byte(strings.TrimSpace(string(data)))
	if len(data) == 0 {
		return nil, nil
	}

	var items []adapterJSON
	if data[0] == '{' {
		var one adapterJSON
		if err := json.Unmarshal(data, &one); err != nil {
			return nil, fmt.Errorf("failed to parse adapter list: %w", err)
		}
		items = []adapterJSON{one}
	} else if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse adapter list: %w", err)
	}

	out := make([]Info, 0, len(items))
	for _, it := range items {
		info := Info{
			Name:        it.Name,
			Description: it.Description,
			Status:      it.Status,
			IPAddress:   it.IPAddress,
			Gateway:     it.Gateway,
			DNSServers:  []string(it.DNSServers),
			DHCPEnabled: it.DHCPEnabled,
		}
		if info.Status == "" {
			info.Status = "Disconnected"
		}
		if it.IPAddress != "" {
			info.SubnetMask = PrefixToMask(it.PrefixLength)
		}
		out = append(out, info)
	}
	return out, nil
}

// PrefixToMask converts an IPv4 prefix length to a dotted decimal mask.
func PrefixToMask(bits int) string {
	bits = max(0, min(bits, 32))
	mask := uint32(0xFFFFFFFF) << (32 - bits)
	return fmt.Sprintf("%d.%d.%d.%d",
		(mask>>24)&0xFF,
		(mask>>16)&0xFF,
		(mask>>8)&0xFF,
		mask&0xFF)
}

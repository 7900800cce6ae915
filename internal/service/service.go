package service

import (
	"fmt"

	"github.com/L1nMay/homeports/internal/model"
)

type entry struct {
	name string
	risk model.RiskLevel
	desc string
}

var table = map[int]entry{
	20:    {"FTP-Data", model.RiskMedium, "FTP data transfer"},
	21:    {"FTP", model.RiskMedium, "file transfer protocol"},
	22:    {"SSH", model.RiskMedium, "secure remote login"},
	23:    {"Telnet", model.RiskHigh, "cleartext remote login, highly insecure"},
	25:    {"SMTP", model.RiskMedium, "mail submission"},
	53:    {"DNS", model.RiskLow, "name resolution"},
	67:    {"DHCP", model.RiskLow, "dynamic host configuration"},
	68:    {"DHCP-Client", model.RiskLow, "DHCP client"},
	69:    {"TFTP", model.RiskMedium, "trivial file transfer"},
	80:    {"HTTP", model.RiskMedium, "web service, unencrypted"},
	88:    {"Kerberos", model.RiskMedium, "authentication service"},
	110:   {"POP3", model.RiskMedium, "mail retrieval, unencrypted"},
	111:   {"RPC", model.RiskMedium, "RPC port mapper"},
	135:   {"RPC", model.RiskHigh, "Windows remote procedure call"},
	139:   {"NetBIOS", model.RiskHigh, "Windows file sharing"},
	143:   {"IMAP", model.RiskMedium, "mail access, unencrypted"},
	161:   {"SNMP", model.RiskMedium, "network management"},
	443:   {"HTTPS", model.RiskLow, "secure web service"},
	445:   {"SMB", model.RiskHigh, "Windows file sharing"},
	465:   {"SMTPS", model.RiskLow, "SMTP over TLS"},
	514:   {"Syslog", model.RiskMedium, "system logging"},
	515:   {"LPD", model.RiskMedium, "line printer daemon"},
	631:   {"IPP", model.RiskMedium, "internet printing protocol"},
	636:   {"LDAPS", model.RiskLow, "LDAP over TLS"},
	1883:  {"MQTT", model.RiskMedium, "IoT messaging"},
	3306:  {"MySQL", model.RiskMedium, "MySQL database"},
	3389:  {"RDP", model.RiskHigh, "Windows remote desktop"},
	5432:  {"PostgreSQL", model.RiskMedium, "PostgreSQL database"},
	5900:  {"VNC", model.RiskHigh, "remote control"},
	5901:  {"VNC-1", model.RiskHigh, "VNC display :1"},
	6379:  {"Redis", model.RiskHigh, "Redis cache"},
	8080:  {"HTTP-Proxy", model.RiskMedium, "web proxy or admin panel"},
	8443:  {"HTTPS-Alt", model.RiskLow, "secure web service (alternate)"},
	8883:  {"MQTTS", model.RiskLow, "MQTT over TLS"},
	9999:  {"Web", model.RiskMedium, "web admin interface"},
	10000: {"Webmin", model.RiskMedium, "Linux admin panel"},
	12306: {"Steam/Custom", model.RiskMedium, "Steam or custom application"},
	27017: {"MongoDB", model.RiskHigh, "MongoDB database"},
}

// Lookup classifies an open port. Ports missing from the table get a
// synthesized name and low risk.
func Lookup(port int) model.PortRecord {
	if e, ok := table[port]; ok {
		return model.PortRecord{Port: port, Service: e.name, Risk: e.risk, RiskDesc: e.desc}
	}
	return model.PortRecord{
		Port:     port,
		Service:  fmt.Sprintf("Port %d", port),
		Risk:     model.RiskLow,
		RiskDesc: "unknown service",
	}
}

// Known reports whether port has a table entry.
func Known(port int) bool {
	_, ok := table[port]
	return ok
}

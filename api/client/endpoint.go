package client

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/arpi-project/arpi/build"
)

// Endpoint is a gateway base address and its parts. Any of URL, Host with
// Protocol, or Host with Port is enough; NormalizeEndpoint fills in the rest.
type Endpoint struct {
	URL      string
	Protocol string
	Host     string
	Port     int
}

var urlRe = regexp.MustCompile(`(https?)://([\w.]+):?(\d+)?`)

// NormalizeEndpoint completes e. The default ports 80 and 443 are stripped
// from the URL and anything unparseable falls back to the default gateway.
func NormalizeEndpoint(e Endpoint) Endpoint {
	switch {
	case e.URL != "":
		loc := urlRe.FindStringSubmatchIndex(e.URL)
		if loc == nil {
			e.URL = build.DefaultGatewayURL
			return NormalizeEndpoint(e)
		}
		e.Protocol = e.URL[loc[2]:loc[3]]
		e.Host = e.URL[loc[4]:loc[5]]
		e.Port = 0
		if loc[6] >= 0 {
			e.Port, _ = strconv.Atoi(e.URL[loc[6]:loc[7]])
		}
		if e.Port == 0 {
			e.Port = defaultPort(e.Protocol)
		}
		rest := strings.TrimRight(e.URL[loc[1]:], "/")
		e.URL = e.Protocol + "://" + e.Host + portSuffix(e.Port) + rest
		return e

	case e.Host != "" && e.Protocol != "":
		if e.Port == 0 {
			e.Port = defaultPort(e.Protocol)
		}
		e.URL = e.Protocol + "://" + e.Host + portSuffix(e.Port)
		return e

	case e.Host != "" && e.Port != 0:
		proto := "http"
		if e.Port == 443 {
			proto = "https"
		}
		e.URL = proto + "://" + e.Host + ":" + strconv.Itoa(e.Port)
		return NormalizeEndpoint(e)

	default:
		e.URL = build.DefaultGatewayURL
		return NormalizeEndpoint(e)
	}
}

func portSuffix(port int) string {
	if port == 80 || port == 443 {
		return ""
	}
	return ":" + strconv.Itoa(port)
}

func defaultPort(proto string) int {
	if proto == "https" {
		return 443
	}
	return 80
}

// IsLocal reports whether e points at a node on this machine. Requests to a
// local node never fail over to public gateways.
func (e Endpoint) IsLocal() bool {
	return e.Host == "localhost"
}

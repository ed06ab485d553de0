// Package discovery finds radio bridges on the local network over mDNS.
//
// A bridge (see package bridge) advertises itself as a "_lorahub._tcp"
// service with a "path=" TXT record naming its WebSocket endpoint. The CLI
// uses this to locate a hub when no bridge URL is configured.
//
// # Usage Example
//
//	hubs, err := discovery.NewScanner().ScanForHubs(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, hub := range hubs {
//	    fmt.Println(hub, hub.URL())
//	}
//
// # Advertising
//
//	server, err := discovery.Advertise("gateway-01", 8765, "/radio")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer server.Shutdown()
package discovery

package endpoint

// builtin is the endpoint metadata table.
var builtin = []Info{
	{
		Type: ICMP, FriendlyName: "ICMP Ping", Icon: "network_ping",
		Description:    "Sends an ICMP echo request and measures the reply time.",
		ProcessingTime: "~1 second", TimeoutMultiplier: 1,
		AnyPort: bands(50, 150, 500), SpecificPort: bands(50, 150, 500),
	},
	{
		Type: HTTP, FriendlyName: "HTTP", Icon: "http",
		Description:    "Issues an HTTP GET and checks the response status.",
		ProcessingTime: "~2 seconds", TimeoutMultiplier: 1,
		AnyPort: bands(300, 800, 2000), SpecificPort: bands(300, 800, 2000),
	},
	{
		Type: HTTPS, FriendlyName: "HTTPS", Icon: "https",
		Description:    "Issues an HTTPS GET and checks the response status.",
		ProcessingTime: "~2 seconds", TimeoutMultiplier: 1,
		AnyPort: bands(400, 1000, 2500), SpecificPort: bands(400, 1000, 2500),
	},
	{
		Type: HTTPHTML, FriendlyName: "HTTP HTML Load", Icon: "html",
		Description:    "Downloads the page body and reports its size and title.",
		ProcessingTime: "~3 seconds", TimeoutMultiplier: 1,
		AnyPort: bands(800, 2000, 5000), SpecificPort: bands(800, 2000, 5000),
	},
	{
		Type: HTTPFull, FriendlyName: "HTTP Full Page Load", Icon: "web",
		Description:    "Loads the page through the browser host.",
		ProcessingTime: "~10 seconds", LongRunning: true, TimeoutMultiplier: 3,
		AnyPort: bands(2000, 5000, 10000), SpecificPort: bands(2000, 5000, 10000),
	},
	{
		Type: DNS, FriendlyName: "DNS Lookup", Icon: "dns",
		Description:    "Resolves the host name and lists the addresses found.",
		ProcessingTime: "~1 second", TimeoutMultiplier: 1,
		AnyPort: bands(50, 200, 800), SpecificPort: bands(50, 200, 800),
	},
	{
		Type: SMTP, FriendlyName: "SMTP Ping", Icon: "mail",
		Description:    "Reads the SMTP greeting and exchanges HELO.",
		ProcessingTime: "~2 seconds", TimeoutMultiplier: 1,
		AnyPort: bands(300, 1000, 3000), SpecificPort: bands(300, 1000, 3000),
	},
	{
		Type: RawConnect, FriendlyName: "Raw TCP Connect", Icon: "cable",
		Description:    "Opens a TCP connection to the port.",
		ProcessingTime: "~1 second", TimeoutMultiplier: 1,
		AnyPort: bands(100, 300, 1000), SpecificPort: bands(100, 300, 1000),
	},
	{
		Type: Nmap, FriendlyName: "Nmap Service Scan", Icon: "radar",
		Description:    "Runs an nmap service scan and reports open ports.",
		ProcessingTime: "~1 minute", LongRunning: true, TimeoutMultiplier: 10,
		AnyPort: bands(20000, 60000, 120000), SpecificPort: bands(5000, 15000, 30000),
	},
	{
		Type: NmapVuln, FriendlyName: "Nmap Vulnerability Scan", Icon: "bug_report",
		Description:    "Runs the nmap vuln scripts and reports findings.",
		ProcessingTime: "~5 minutes", LongRunning: true, TimeoutMultiplier: 20,
		AnyPort: bands(60000, 180000, 300000), SpecificPort: bands(30000, 90000, 180000),
	},
	{
		Type: CrawlSite, FriendlyName: "Site Crawl", Icon: "travel_explore",
		Description:    "Crawls the site and reports broken pages.",
		ProcessingTime: "~2 minutes", LongRunning: true, TimeoutMultiplier: 10,
		AnyPort: bands(30000, 90000, 180000), SpecificPort: bands(30000, 90000, 180000),
	},
	{
		Type: DailyCrawl, FriendlyName: "Daily Site Crawl", Icon: "calendar_month",
		Description:    "Crawls the site once per day.",
		ProcessingTime: "~2 minutes", LongRunning: true, TimeoutMultiplier: 10,
		AnyPort: bands(30000, 90000, 180000), SpecificPort: bands(30000, 90000, 180000),
	},
	{
		Type: BLEBroadcast, FriendlyName: "BLE Broadcast", Icon: "bluetooth",
		Description:    "Decodes an encrypted BLE advertisement from the device.",
		ProcessingTime: "~10 seconds", TimeoutMultiplier: 2,
		AnyPort: bands(2000, 5000, 10000), SpecificPort: bands(2000, 5000, 10000),
	},
	{
		Type: BLEBroadcastListen, FriendlyName: "BLE Listen", Icon: "bluetooth_searching",
		Description:    "Listens for BLE advertisements.",
		ProcessingTime: "~30 seconds", LongRunning: true, TimeoutMultiplier: 3,
		AnyPort: bands(5000, 15000, 30000), SpecificPort: bands(5000, 15000, 30000),
	},
	{
		Type: SiteHash, FriendlyName: "Site Content Hash", Icon: "fingerprint",
		Description:    "Detects changes to the rendered page content.",
		ProcessingTime: "~10 seconds", LongRunning: true, TimeoutMultiplier: 3,
		AnyPort: bands(2000, 5000, 10000), SpecificPort: bands(2000, 5000, 10000),
	},
	{
		Type: DailyHugKeepAlive, FriendlyName: "Hosted App Keep Alive", Icon: "bedtime_off",
		Description:    "Wakes a sleeping hosted application once per day.",
		ProcessingTime: "~3 minutes", LongRunning: true, TimeoutMultiplier: 20,
		AnyPort: bands(30000, 90000, 180000), SpecificPort: bands(30000, 90000, 180000),
	},
	{
		Type: Quantum, FriendlyName: "Quantum Ready TLS", Icon: "key",
		Description:    "Checks whether the server negotiates a post-quantum key exchange.",
		ProcessingTime: "~20 seconds", LongRunning: true, TimeoutMultiplier: 4,
		AnyPort: bands(1000, 3000, 8000), SpecificPort: bands(1000, 3000, 8000),
	},
}

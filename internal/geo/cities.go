package geo

// City is a named coordinate in the built-in table.
type City struct {
	Key string
	Lat float64
	Lon float64
}

// cityTable is ordered: partial matches resolve to the first entry that contains (or is contained in) the name.
var cityTable = []City{
	// North America - United States
	{"new york", 40.7128, -74.0060},
	{"los angeles", 34.0522, -118.2437},
	{"chicago", 41.8781, -87.6298},
	{"houston", 29.7604, -95.3698},
	{"phoenix", 33.4484, -112.0740},
	{"philadelphia", 39.9526, -75.1652},
	{"san antonio", 29.4241, -98.4936},
	{"san diego", 32.7157, -117.1611},
	{"dallas", 32.7767, -96.7970},
	{"san jose", 37.3382, -121.8863},
	{"austin", 30.2672, -97.7431},
	{"jacksonville", 30.3322, -81.6557},
	{"san francisco", 37.7749, -122.4194},
	{"columbus", 39.9612, -82.9988},
	{"charlotte", 35.2271, -80.8431},
	{"indianapolis", 39.7684, -86.1581},
	{"seattle", 47.6062, -122.3321},
	{"denver", 39.7392, -104.9903},
	{"washington", 38.9072, -77.0369},
	{"boston", 42.3601, -71.0589},
	{"nashville", 36.1627, -86.7816},
	{"detroit", 42.3314, -83.0458},
	{"portland", 45.5152, -122.6784},
	{"las vegas", 36.1699, -115.1398},
	{"memphis", 35.1495, -90.0490},
	{"louisville", 38.2527, -85.7585},
	{"baltimore", 39.2904, -76.6122},
	{"milwaukee", 43.0389, -87.9065},
	{"albuquerque", 35.0844, -106.6504},
	{"tucson", 32.2226, -110.9747},
	{"fresno", 36.7378, -119.7871},
	{"mesa", 33.4152, -111.8315},
	{"sacramento", 38.5816, -121.4944},
	{"atlanta", 33.7490, -84.3880},
	{"kansas city", 39.0997, -94.5786},
	{"miami", 25.7617, -80.1918},
	{"raleigh", 35.7796, -78.6382},
	{"omaha", 41.2565, -95.9345},
	{"cleveland", 41.4993, -81.6944},
	{"minneapolis", 44.9778, -93.2650},
	{"virginia beach", 36.8529, -75.9780},

	// North America - Canada
	{"toronto", 43.6532, -79.3832},
	{"montreal", 45.5017, -73.5673},
	{"vancouver", 49.2827, -123.1207},
	{"calgary", 51.0447, -114.0719},
	{"edmonton", 53.5461, -113.4938},
	{"ottawa", 45.4215, -75.6972},
	{"winnipeg", 49.8951, -97.1384},
	{"quebec", 46.8139, -71.2080},
	{"hamilton", 43.2557, -79.8711},

	// North America - Mexico
	{"mexico city", 19.4326, -99.1332},
	{"guadalajara", 20.6597, -103.3496},
	{"monterrey", 25.6866, -100.3161},
	{"puebla", 19.0414, -98.2063},
	{"tijuana", 32.5149, -117.0382},
	{"cancun", 21.1619, -86.8515},

	// Europe - Western Europe
	{"london", 51.5074, -0.1278},
	{"paris", 48.8566, 2.3522},
	{"berlin", 52.5200, 13.4050},
	{"madrid", 40.4168, -3.7038},
	{"rome", 41.9028, 12.4964},
	{"amsterdam", 52.3676, 4.9041},
	{"vienna", 48.2082, 16.3738},
	{"hamburg", 53.5511, 9.9937},
	{"barcelona", 41.3874, 2.1686},
	{"munich", 48.1351, 11.5820},
	{"milan", 45.4642, 9.1900},
	{"prague", 50.0755, 14.4378},
	{"brussels", 50.8503, 4.3517},
	{"zurich", 47.3769, 8.5417},
	{"frankfurt", 50.1109, 8.6821},
	{"copenhagen", 55.6761, 12.5683},
	{"dublin", 53.3498, -6.2603},
	{"lisbon", 38.7223, -9.1393},
	{"stockholm", 59.3293, 18.0686},
	{"oslo", 59.9139, 10.7522},
	{"helsinki", 60.1699, 24.9384},
	{"geneva", 46.2044, 6.1432},
	{"cologne", 50.9375, 6.9603},
	{"stuttgart", 48.7758, 9.1829},
	{"dusseldorf", 51.2277, 6.7735},
	{"lyon", 45.7640, 4.8357},
	{"marseille", 43.2965, 5.3698},
	{"naples", 40.8518, 14.2681},
	{"turin", 45.0703, 7.6869},
	{"valencia", 39.4699, -0.3763},
	{"seville", 37.3891, -5.9845},
	{"manchester", 53.4808, -2.2426},
	{"birmingham", 52.4862, -1.8904},
	{"glasgow", 55.8642, -4.2518},
	{"edinburgh", 55.9533, -3.1883},

	// Europe - Eastern Europe
	{"warsaw", 52.2297, 21.0122},
	{"budapest", 47.4979, 19.0402},
	{"bucharest", 44.4268, 26.1025},
	{"sofia", 42.6977, 23.3219},
	{"belgrade", 44.7866, 20.4489},
	{"zagreb", 45.8150, 15.9819},
	{"athens", 37.9838, 23.7275},
	{"kiev", 50.4501, 30.5234},
	{"minsk", 53.9045, 27.5615},

	// Asia - East Asia
	{"tokyo", 35.6762, 139.6503},
	{"osaka", 34.6937, 135.5023},
	{"yokohama", 35.4437, 139.6380},
	{"nagoya", 35.1815, 136.9066},
	{"sapporo", 43.0642, 141.3469},
	{"beijing", 39.9042, 116.4074},
	{"shanghai", 31.2304, 121.4737},
	{"guangzhou", 23.1291, 113.2644},
	{"shenzhen", 22.5431, 114.0579},
	{"chengdu", 30.5728, 104.0668},
	{"chongqing", 29.4316, 106.9123},
	{"tianjin", 39.3434, 117.3616},
	{"wuhan", 30.5928, 114.3055},
	{"hangzhou", 30.2741, 120.1551},
	{"xian", 34.3416, 108.9398},
	{"seoul", 37.5665, 126.9780},
	{"busan", 35.1796, 129.0756},
	{"incheon", 37.4563, 126.7052},
	{"hong kong", 22.3193, 114.1694},
	{"taipei", 25.0330, 121.5654},
	{"macau", 22.1987, 113.5439},

	// Asia - Southeast Asia
	{"singapore", 1.3521, 103.8198},
	{"bangkok", 13.7563, 100.5018},
	{"manila", 14.5995, 120.9842},
	{"jakarta", -6.2088, 106.8456},
	{"kuala lumpur", 3.1390, 101.6869},
	{"ho chi minh", 10.8231, 106.6297},
	{"hanoi", 21.0285, 105.8542},
	{"phnom penh", 11.5564, 104.9282},
	{"yangon", 16.8661, 96.1951},

	// Asia - South Asia
	{"mumbai", 19.0760, 72.8777},
	{"delhi", 28.7041, 77.1025},
	{"bangalore", 12.9716, 77.5946},
	{"kolkata", 22.5726, 88.3639},
	{"chennai", 13.0827, 80.2707},
	{"hyderabad", 17.3850, 78.4867},
	{"pune", 18.5204, 73.8567},
	{"ahmedabad", 23.0225, 72.5714},
	{"karachi", 24.8607, 67.0011},
	{"lahore", 31.5497, 74.3436},
	{"islamabad", 33.6844, 73.0479},
	{"dhaka", 23.8103, 90.4125},
	{"colombo", 6.9271, 79.8612},

	// Middle East
	{"dubai", 25.2048, 55.2708},
	{"abu dhabi", 24.4539, 54.3773},
	{"riyadh", 24.7136, 46.6753},
	{"jeddah", 21.5433, 39.1728},
	{"doha", 25.2854, 51.5310},
	{"kuwait city", 29.3759, 47.9774},
	{"muscat", 23.5880, 58.3829},
	{"manama", 26.2285, 50.5860},
	{"tel aviv", 32.0853, 34.7818},
	{"jerusalem", 31.7683, 35.2137},
	{"beirut", 33.8886, 35.4955},
	{"amman", 31.9454, 35.9284},
	{"tehran", 35.6892, 51.3890},
	{"baghdad", 33.3152, 44.3661},

	// Africa
	{"cairo", 30.0444, 31.2357},
	{"lagos", 6.5244, 3.3792},
	{"johannesburg", -26.2041, 28.0473},
	{"cape town", -33.9249, 18.4241},
	{"nairobi", -1.2864, 36.8172},
	{"addis ababa", 9.0320, 38.7469},
	{"casablanca", 33.5731, -7.5898},
	{"algiers", 36.7538, 3.0588},
	{"accra", 5.6037, -0.1870},
	{"dar es salaam", -6.7924, 39.2083},
	{"durban", -29.8587, 31.0218},
	{"tunis", 36.8065, 10.1815},
	{"kampala", 0.3476, 32.5825},
	{"lusaka", -15.3875, 28.3228},
	{"harare", -17.8252, 31.0335},

	// South America
	{"sao paulo", -23.5505, -46.6333},
	{"rio de janeiro", -22.9068, -43.1729},
	{"buenos aires", -34.6037, -58.3816},
	{"lima", -12.0464, -77.0428},
	{"bogota", 4.7110, -74.0721},
	{"santiago", -33.4489, -70.6693},
	{"caracas", 10.4806, -66.9036},
	{"brasilia", -15.8267, -47.9218},
	{"medellin", 6.2476, -75.5658},
	{"quito", -0.1807, -78.4678},
	{"montevideo", -34.9011, -56.1645},
	{"asuncion", -25.2637, -57.5759},

	// Oceania
	{"sydney", -33.8688, 151.2093},
	{"melbourne", -37.8136, 144.9631},
	{"brisbane", -27.4698, 153.0251},
	{"perth", -31.9505, 115.8605},
	{"auckland", -36.8485, 174.7633},
	{"wellington", -41.2865, 174.7762},
	{"adelaide", -34.9285, 138.6007},
	{"canberra", -35.2809, 149.1300},
}

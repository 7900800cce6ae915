package service

var commonPorts = []int{
	20, 21, 22, 23, 25, 53, 67, 68, 69, 80, 81, 82, 83, 88, 110, 111, 113, 119, 123, 135, 137, 138, 139,
	143, 161, 179, 194, 389, 443, 445, 464, 465, 500, 514, 515, 520, 521, 546, 547, 554, 587, 631, 636,
	989, 990, 993, 995, 1080, 1194, 1433, 1434, 1521, 1701, 1723, 1883, 1900, 2049, 2082, 2083, 2086,
	2087, 2095, 2096, 2222, 2375, 2376, 3000, 3128, 3306, 3389, 5432, 5500, 5555, 5601, 5672, 5900,
	5901, 5984, 6379, 6443, 6631, 6667, 7001, 7474, 8000, 8008, 8080, 8086, 8088, 8443, 8883, 8888,
	9000, 9042, 9092, 9200, 9443, 9999, 11211, 12306, 27017, 27018, 28015, 50000,
}

// CommonPorts returns a fresh copy of the curated well-known port list.
func CommonPorts() []int {
	return append([]int(nil), commonPorts...)
}

package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
)

// searchPage is the shell both portals serve first. It carries the session token in the inline data object.
const searchPage = `<!DOCTYPE html>
<html>
<head><title>%[1]s</title></head>
<body>
<div id="results"></div>
<script>
$.ajax({
  url: '%[2]s',
  type: 'POST',
  data: {
    _token: '%[3]s',
    originplace: '%[4]s',
    destinationplace: '%[5]s',
    noc: $.now()
  }
});
</script>
</body>
</html>`

func main() {
	// Default port
	port := "8081"

	// Check if port is provided as command line argument
	if len(os.Args) > 1 {
		port = os.Args[1]
	}

	sky := newSkyHandler("mock/files/sky_results.html", 2)

	http.HandleFunc("/portal/sky", sky.Search)
	http.HandleFunc("/portal/sky/poll", sky.Poll)
	http.HandleFunc("/portal/kiwi", KiwiSearchPageHandler)
	http.HandleFunc("/portal/kiwi/search", KiwiResultsHandler)

	addr := fmt.Sprintf(":%s", port)
	fmt.Printf("Go Mock Server running on port %s...\n", port)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatal(err)
	}
}

package tools

import (
	"context"
	"net/url"
)

// TravelSearchTool searches flights and hotels through the travel
// provider, grounded on orchestrator-svc/app/tools/amadeus.py.
type TravelSearchTool struct {
	base *BaseTool
}

func NewTravelSearchTool(baseURL string, timeout int) *TravelSearchTool {
	return &TravelSearchTool{base: NewBaseTool("travel-search", baseURL, secondsOrDefault(timeout))}
}

func (t *TravelSearchTool) SearchFlights(ctx context.Context, origin, destination, departDate string) (map[string]any, error) {
	q := url.Values{"origin": {origin}, "destination": {destination}, "departDate": {departDate}}
	return t.base.Request(ctx, "GET", "/flights?"+q.Encode(), nil)
}

func (t *TravelSearchTool) SearchHotels(ctx context.Context, city, checkIn, checkOut string) (map[string]any, error) {
	q := url.Values{"city": {city}, "checkIn": {checkIn}, "checkOut": {checkOut}}
	return t.base.Request(ctx, "GET", "/hotels?"+q.Encode(), nil)
}

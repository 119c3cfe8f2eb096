// Package geocode resolves photo coordinates to a display address via the
// public Nominatim instance. Strictly best-effort: every failure degrades
// to UnknownLocation and is never propagated to the caller.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

const UnknownLocation = "Unknown location"

const (
	endpoint = "https://nominatim.openstreetmap.org/reverse"
	// Nominatim's usage policy asks for at most one request per second;
	// we stay well under it.
	throttle = 3 * time.Second
)

type nominatimAddress struct {
	Place         string `json:"place"`
	Neighbourhood string `json:"neighbourhood"`
	City          string `json:"city"`
	Municipality  string `json:"municipality"`
	Province      string `json:"province"`
	Country       string `json:"country"`
}

type nominatimLocation struct {
	DisplayName string           `json:"display_name"`
	Address     nominatimAddress `json:"address"`
}

type Client struct {
	http        *http.Client
	mu          sync.Mutex
	lastRequest time.Time
}

func NewClient() *Client {
	return &Client{
		http:        &http.Client{Timeout: 10 * time.Second},
		lastRequest: time.Now().Add(-throttle),
	}
}

// Reverse returns a short "area, city, country" string for the given
// coordinates, or UnknownLocation.
func (c *Client) Reverse(ctx context.Context, lat, lng float64) string {
	loc := c.fetch(ctx, lat, lng)
	if loc == nil {
		return UnknownLocation
	}
	display := loc.shortDisplay()
	if display == "" {
		return UnknownLocation
	}
	return display
}

func (c *Client) fetch(ctx context.Context, lat, lng float64) *nominatimLocation {
	c.mu.Lock()
	if wait := throttle - time.Since(c.lastRequest); wait > 0 {
		time.Sleep(wait)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	url := fmt.Sprintf("%s?format=json&lat=%f&lon=%f", endpoint, lat, lng)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("accept-language", "en")
	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("Geocode: request failed: %v", err)
		return nil
	}
	defer resp.Body.Close()

	result := &nominatimLocation{}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		log.Printf("Geocode: decode failed: %v", err)
		return nil
	}
	return result
}

func (n *nominatimLocation) city() string {
	if n.Address.City != "" {
		return n.Address.City
	}
	if n.Address.Municipality != "" {
		return n.Address.Municipality
	}
	return n.Address.Province
}

func (n *nominatimLocation) area() string {
	if n.Address.Place != "" {
		return n.Address.Place
	}
	if n.Address.Neighbourhood != "" {
		return n.Address.Neighbourhood
	}
	if parts := strings.Split(n.DisplayName, ","); len(parts) > 0 {
		return strings.TrimSpace(parts[0])
	}
	return ""
}

func (n *nominatimLocation) shortDisplay() string {
	parts := []string{}
	for _, p := range []string{n.area(), n.city(), n.Address.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

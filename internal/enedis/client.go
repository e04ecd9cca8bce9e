package enedis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultBaseURL is the enterprise annual-consumption-by-address dataset on
// the Enedis data-fair portal.
const DefaultBaseURL = "https://opendata.enedis.fr/data-fair/api/v1/datasets/consommation-annuelle-entreprise-par-adresse"

// fetchPageSize is the data-fair maximum.
const fetchPageSize = 10000

// Record is one address line of the dataset, with only the fields this
// service consumes.
type Record struct {
	Adresse          string  `json:"adresse"`
	CodeCommune      string  `json:"code_commune"`
	NomCommune       string  `json:"nom_commune"`
	NombreDeSites    int     `json:"nombre_de_sites"`
	ConsommationMWh  float64 `json:"consommation_annuelle_totale_de_ladresse_mwh"`
	CodeGrandSecteur string  `json:"code_grand_secteur"`
	CodeSecteurNAF2  string  `json:"code_secteur_naf2"`
}

// Client fetches consumption records from the open-data portal.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type linesResponse struct {
	Results []Record `json:"results"`
}

// FetchCommune pulls every record for one commune and year, paging until a
// short page.
func (c *Client) FetchCommune(ctx context.Context, codeCommune string, annee int) ([]Record, error) {
	var all []Record
	for page := 1; ; page++ {
		records, err := c.fetchPage(ctx, codeCommune, annee, page)
		if err != nil {
			return nil, fmt.Errorf("commune %s page %d: %w", codeCommune, page, err)
		}
		all = append(all, records...)
		if len(records) < fetchPageSize {
			break
		}
	}
	log.Printf("[Enedis] commune=%s annee=%d: %d records", codeCommune, annee, len(all))
	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, codeCommune string, annee, page int) ([]Record, error) {
	params := url.Values{}
	params.Set("code_commune_eq", codeCommune)
	params.Set("annee_eq", strconv.Itoa(annee))
	params.Set("size", strconv.Itoa(fetchPageSize))
	params.Set("page", strconv.Itoa(page))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/lines?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dataset request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dataset returned HTTP %d", resp.StatusCode)
	}

	var body linesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding dataset response: %w", err)
	}
	return body.Results, nil
}

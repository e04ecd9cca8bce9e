package enedis

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestFetchCommune_SinglePage parses one short page and forwards the query
// filters.
func TestFetchCommune_SinglePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("code_commune_eq") != "63113" {
			t.Errorf("code_commune_eq = %q", q.Get("code_commune_eq"))
		}
		if q.Get("annee_eq") != "2024" {
			t.Errorf("annee_eq = %q", q.Get("annee_eq"))
		}
		fmt.Fprint(w, `{"results": [
			{
				"adresse": "12 RUE DE LA GARE",
				"code_commune": "63113",
				"nom_commune": "Clermont-Ferrand",
				"nombre_de_sites": 3,
				"consommation_annuelle_totale_de_ladresse_mwh": 142.5,
				"code_grand_secteur": "TERTIAIRE",
				"code_secteur_naf2": "47"
			},
			{
				"adresse": "ZONE INDUSTRIELLE EST",
				"code_commune": "63113",
				"nom_commune": "Clermont-Ferrand",
				"nombre_de_sites": 1,
				"consommation_annuelle_totale_de_ladresse_mwh": 2500,
				"code_grand_secteur": "INDUSTRIE",
				"code_secteur_naf2": "20"
			}
		]}`)
	}))
	defer srv.Close()

	records, err := NewClient(srv.URL).FetchCommune(context.Background(), "63113", 2024)
	if err != nil {
		t.Fatalf("FetchCommune: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	r := records[0]
	if r.Adresse != "12 RUE DE LA GARE" || r.NombreDeSites != 3 || r.ConsommationMWh != 142.5 {
		t.Errorf("unexpected record: %+v", r)
	}
	if r.CodeGrandSecteur != "TERTIAIRE" || r.CodeSecteurNAF2 != "47" {
		t.Errorf("sector codes not parsed: %+v", r)
	}
}

// TestFetchCommune_Empty handles a commune with no data.
func TestFetchCommune_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results": []}`)
	}))
	defer srv.Close()

	records, err := NewClient(srv.URL).FetchCommune(context.Background(), "00000", 2024)
	if err != nil {
		t.Fatalf("FetchCommune: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}

// TestFetchCommune_HTTPError surfaces non-200 responses.
func TestFetchCommune_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL).FetchCommune(context.Background(), "63113", 2024); err == nil {
		t.Error("expected an error for HTTP 429")
	}
}

// TestTechnicalKeys verifies the dedup keys ignore the address and the manual
// address key lowercases and trims.
func TestTechnicalKeys(t *testing.T) {
	k1 := technicalKey("63113", 2024, 3, 142.5, "]100-250]", "Tertiaire")
	k2 := technicalKey("63113", 2024, 3, 142.5, "]100-250]", "Tertiaire")
	if k1 != k2 {
		t.Errorf("identical inputs should produce identical keys: %q vs %q", k1, k2)
	}
	if technicalKey("63113", 2024, 3, 142.5, "]100-250]", "Tertiaire") ==
		technicalKey("63113", 2023, 3, 142.5, "]100-250]", "Tertiaire") {
		t.Error("year must differentiate keys")
	}

	if simplifiedKey("63113", 2024, 3, 142.5) == simplifiedKey("63113", 2024, 3, 142.6) {
		t.Error("consumption must differentiate simplified keys")
	}

	if addressKey("63113", 2024, "  12 Rue DE LA Gare ") != addressKey("63113", 2024, "12 rue de la gare") {
		t.Error("address keys should be case- and whitespace-insensitive")
	}
}

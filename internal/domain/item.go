package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// Category enumerates the garment categories the catalog supports.
type Category string

const (
	CategoryHoodie  Category = "hoodie"
	CategoryTShirt  Category = "t_shirt"
	CategoryJacket  Category = "jacket"
	CategorySweater Category = "sweater"
	CategoryTankTop Category = "tank_top"
	CategoryCoat    Category = "coat"
	CategoryPants   Category = "pants"
	CategoryShorts  Category = "shorts"
	CategorySkirt   Category = "skirt"
	CategoryDress   Category = "dress"
)

// Collection enumerates the brand collections an item can belong to.
type Collection string

const (
	CollectionBlackRose Collection = "black_rose"
	CollectionLoveHurts Collection = "love_hurts"
	CollectionSignature Collection = "signature"
)

// collectionStyles feeds the text-to-3D prompt with per-collection art
// direction keywords.
var collectionStyles = map[Collection]string{
	CollectionBlackRose: "dark romantic luxury, black and deep red palette, rose motifs",
	CollectionLoveHurts: "edgy streetwear, heart and barbed wire motifs, bold contrast",
	CollectionSignature: "clean premium streetwear, minimal branding, gold accents",
}

// ItemDescription is the immutable caller-supplied description of one catalog
// item. It is validated once at the pipeline boundary and never mutated.
type ItemDescription struct {
	ItemID             string     `json:"item_id"`
	Name               string     `json:"name"`
	Description        string     `json:"description"`
	Category           Category   `json:"category"`
	Collection         Collection `json:"collection"`
	Color              string     `json:"color"`
	ReferenceImageURL  string     `json:"reference_image_url,omitempty"`
	ReferenceImagePath string     `json:"reference_image_path,omitempty"`
	Price              float64    `json:"price"`
	SKU                string     `json:"sku"`
	Tags               []string   `json:"tags,omitempty"`
}

// Validate enforces the item invariants. A violation is a *ValidationError.
func (i ItemDescription) Validate() error {
	switch {
	case strings.TrimSpace(i.ItemID) == "":
		return &ValidationError{Field: "item_id", Reason: "must not be empty"}
	case strings.TrimSpace(i.Name) == "":
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	case strings.TrimSpace(i.Description) == "":
		return &ValidationError{Field: "description", Reason: "must not be empty"}
	case strings.TrimSpace(i.SKU) == "":
		return &ValidationError{Field: "sku", Reason: "must not be empty"}
	case i.Price <= 0:
		return &ValidationError{Field: "price", Reason: "must be greater than zero"}
	}
	if i.ReferenceImageURL != "" {
		parsed, err := url.Parse(i.ReferenceImageURL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return &ValidationError{Field: "reference_image_url", Reason: "must be a well-formed http(s) URL"}
		}
	}
	return nil
}

// HasReferenceImage reports whether the caller supplied a garment image,
// either remote or local.
func (i ItemDescription) HasReferenceImage() bool {
	return i.ReferenceImageURL != "" || i.ReferenceImagePath != ""
}

// PromptFor3D synthesizes the text-to-model prompt from the item's color,
// category, collection style keywords and free-text description. Used only
// when no reference image is supplied.
func (i ItemDescription) PromptFor3D() string {
	parts := []string{
		fmt.Sprintf("3D model of a %s %s", i.Color, categoryNoun(i.Category)),
	}
	if style, ok := collectionStyles[i.Collection]; ok {
		parts = append(parts, "Style: "+style)
	}
	if desc := strings.TrimSpace(i.Description); desc != "" {
		parts = append(parts, desc)
	}
	parts = append(parts,
		"High quality mesh, clean topology",
		"Photorealistic PBR textures, e-commerce product visualization",
	)
	return strings.Join(parts, ". ")
}

func categoryNoun(c Category) string {
	switch c {
	case CategoryTShirt:
		return "t-shirt"
	case CategoryTankTop:
		return "tank top"
	case "":
		return "garment"
	default:
		return string(c)
	}
}

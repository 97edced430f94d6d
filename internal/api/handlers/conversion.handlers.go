package routes

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"bim2osm/internal/converter"
	"bim2osm/internal/model"
	"bim2osm/internal/service/conversion"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb/geojson"
)

// MaxUploadSize bounds the size of an uploaded model
const MaxUploadSize = 512 << 20

// ConversionHandlers serves the conversion endpoints
type ConversionHandlers struct {
	service *conversion.ConversionService
}

// SetupConversionHandlers registers the conversion and way endpoints
func SetupConversionHandlers(router *gin.RouterGroup, service *conversion.ConversionService) {
	h := &ConversionHandlers{service: service}

	conversionGroup := router.Group("/conversions")
	conversionGroup.POST("", h.CreateConversion)
	conversionGroup.GET("", h.ListConversions)
	conversionGroup.GET("/:id", h.GetConversion)
	conversionGroup.GET("/:id/osm", h.GetConversionOSM)
	conversionGroup.GET("/:id/geojson", h.GetConversionGeoJSON)

	router.GET("/ways", h.GetWaysInBounds)
}

type conversionResponse struct {
	*model.Conversion
	Ways   int  `json:"ways"`
	Cached bool `json:"cached,omitempty"`
}

// CreateConversion converts an uploaded model, sent either as the multipart
// field "file" or as the raw request body
func (h *ConversionHandlers) CreateConversion(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize)

	name := c.Query("name")
	var data []byte
	var err error

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fileHeader, ferr := c.FormFile("file")
		if ferr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing file field"})
			return
		}
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(fileHeader.Filename), filepath.Ext(fileHeader.Filename))
		}
		f, ferr := fileHeader.Open()
		if ferr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": ferr.Error()})
			return
		}
		defer f.Close()
		data, err = io.ReadAll(f)
	} else {
		data, err = io.ReadAll(c.Request.Body)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("failed to read model: %v", err)})
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty model"})
		return
	}
	if name == "" {
		name = "model"
	}

	conv, cached, err := h.service.Convert(c.Request.Context(), name, data)
	switch {
	case errors.Is(err, conversion.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, converter.ErrFatal):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	case err != nil:
		log.Printf("Conversion of %q failed: %v", name, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "conversion failed"})
		return
	}

	status := http.StatusCreated
	if cached {
		status = http.StatusOK
	}
	c.JSON(status, conversionResponse{Conversion: conv, Ways: len(conv.Ways), Cached: cached})
}

// ListConversions returns a summary of every stored conversion
func (h *ConversionHandlers) ListConversions(c *gin.Context) {
	all := h.service.List()
	out := make([]conversionResponse, len(all))
	for i, conv := range all {
		out[i] = conversionResponse{Conversion: conv, Ways: len(conv.Ways)}
	}
	c.JSON(http.StatusOK, out)
}

func (h *ConversionHandlers) lookup(c *gin.Context) (*model.Conversion, bool) {
	conv, ok := h.service.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": conversion.ErrNotFound.Error()})
	}
	return conv, ok
}

// GetConversion returns one conversion summary
func (h *ConversionHandlers) GetConversion(c *gin.Context) {
	if conv, ok := h.lookup(c); ok {
		c.JSON(http.StatusOK, conversionResponse{Conversion: conv, Ways: len(conv.Ways)})
	}
}

// GetConversionOSM returns the OSM XML document
func (h *ConversionHandlers) GetConversionOSM(c *gin.Context) {
	if conv, ok := h.lookup(c); ok {
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", conv.Name+".osm"))
		c.Data(http.StatusOK, "application/xml; charset=utf-8", conv.OSM)
	}
}

// GetConversionGeoJSON returns the GeoJSON feature collection
func (h *ConversionHandlers) GetConversionGeoJSON(c *gin.Context) {
	if conv, ok := h.lookup(c); ok {
		c.Data(http.StatusOK, "application/geo+json", conv.GeoJSON)
	}
}

// GetWaysInBounds returns the stored ways intersecting a lat/lon box as GeoJSON
func (h *ConversionHandlers) GetWaysInBounds(c *gin.Context) {
	var bounds [4]float64
	for i, key := range []string{"minLat", "minLon", "maxLat", "maxLon"} {
		v, err := strconv.ParseFloat(c.Query(key), 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid %s", key)})
			return
		}
		bounds[i] = v
	}

	ways, err := h.service.WaysInBounds(bounds[0], bounds[1], bounds[2], bounds[3])
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fc := geojson.NewFeatureCollection()
	for _, w := range ways {
		feature := geojson.NewFeature(w.Way.Geometry())
		feature.ID = w.Way.ID
		for k, v := range w.Way.Tags {
			feature.Properties[k] = v
		}
		feature.Properties["conversion_id"] = w.ConversionID
		feature.Properties["role"] = w.Way.Role
		fc.Append(feature)
	}
	c.JSON(http.StatusOK, fc)
}

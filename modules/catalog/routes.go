package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Suhaibinator/SModule/internal/api/response"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const pageSize = 10

// ListProductsResponse is one page of products.
type ListProductsResponse struct {
	Products []Product `json:"products"`
	Page     int       `json:"page"`
	Total    int64     `json:"total"`
}

func routes(r *mux.Router, db *gorm.DB) {
	r.HandleFunc("/", listProducts(db)).Methods("GET")
	r.HandleFunc("/{id:[0-9]+}", getProduct(db)).Methods("GET")
}

// listProducts serves GET / with optional ?search= (name or barcode) and ?page=.
func listProducts(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := 1
		if p := r.URL.Query().Get("page"); p != "" {
			n, err := strconv.Atoi(p)
			if err != nil || n < 1 {
				response.Error(w, http.StatusBadRequest, "Invalid page number")
				return
			}
			page = n
		}

		query := db.WithContext(r.Context()).Model(&Product{})
		if search := r.URL.Query().Get("search"); search != "" {
			like := "%" + search + "%"
			query = query.Where("name LIKE ? OR barcode LIKE ?", like, like)
		}
		query = query.Session(&gorm.Session{})

		var total int64
		if err := query.Count(&total).Error; err != nil {
			zap.L().Error("Error counting products", zap.Error(err))
			response.Error(w, http.StatusInternalServerError, "Failed to retrieve products")
			return
		}
		products := []Product{}
		if err := query.Order("name").Limit(pageSize).Offset((page - 1) * pageSize).Find(&products).Error; err != nil {
			zap.L().Error("Error listing products", zap.Error(err))
			response.Error(w, http.StatusInternalServerError, "Failed to retrieve products")
			return
		}

		response.JSON(w, http.StatusOK, ListProductsResponse{Products: products, Page: page, Total: total})
	}
}

// getProduct serves GET /{id}.
func getProduct(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid product id")
			return
		}

		var product Product
		err = db.WithContext(r.Context()).First(&product, id).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				response.Error(w, http.StatusNotFound, "Product not found")
			} else {
				zap.L().Error("Error loading product", zap.Uint64("id", id), zap.Error(err))
				response.Error(w, http.StatusInternalServerError, "Failed to retrieve product")
			}
			return
		}
		response.JSON(w, http.StatusOK, product)
	}
}

package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/marketplace/internal/repo"
	"github.com/Skotchmaster/marketplace/internal/service"
	"github.com/Skotchmaster/marketplace/internal/transport"
	"github.com/Skotchmaster/marketplace/pkg/logging"
)

type CatalogHTTP struct {
	Svc *service.CatalogService
}

func (h *CatalogHTTP) ListCategories(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "category.list")

	out, err := h.Svc.ListCategories(ctx)
	if err != nil {
		return failed(l, "list_categories", err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHTTP) CreateCategory(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "category.create")

	var req transport.CategoryRequest
	if err := bind(c, &req); err != nil {
		return failed(l, "create_category", err)
	}
	cat, err := h.Svc.CreateCategory(ctx, req)
	if err != nil {
		return failed(l, "create_category", err)
	}
	l.Infow("create_category_success", "category_id", cat.ID)
	return c.JSON(http.StatusCreated, cat)
}

func (h *CatalogHTTP) UpdateCategory(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "category.update")

	id, err := paramID(c, "id")
	if err != nil {
		return failed(l, "update_category", err)
	}
	var req transport.CategoryRequest
	if err := bind(c, &req); err != nil {
		return failed(l, "update_category", err)
	}
	cat, err := h.Svc.UpdateCategory(ctx, id, req)
	if err != nil {
		return failed(l, "update_category", err)
	}
	return c.JSON(http.StatusOK, cat)
}

func (h *CatalogHTTP) DeleteCategory(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "category.delete")

	id, err := paramID(c, "id")
	if err != nil {
		return failed(l, "delete_category", err)
	}
	if err := h.Svc.DeleteCategory(ctx, id); err != nil {
		return failed(l, "delete_category", err)
	}
	l.Infow("delete_category_success", "category_id", id)
	return c.NoContent(http.StatusNoContent)
}

func (h *CatalogHTTP) GetProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.get")

	id, err := paramID(c, "id")
	if err != nil {
		return failed(l, "get_product", err)
	}
	p, err := h.Svc.GetProduct(ctx, id)
	if err != nil {
		return failed(l, "get_product", err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *CatalogHTTP) ListProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.list")

	f := repo.ProductFilter{ActiveOnly: true}
	var err error
	if f.CategoryID, err = queryID(c, "categoryId"); err != nil {
		return failed(l, "list_products", err)
	}
	if f.VendorID, err = queryID(c, "vendorId"); err != nil {
		return failed(l, "list_products", err)
	}
	page, size := pageParams(c)

	out, err := h.Svc.ListProducts(ctx, f, page, size)
	if err != nil {
		return failed(l, "list_products", err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHTTP) SearchProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.search")

	page, size := pageParams(c)
	out, err := h.Svc.Search(ctx, c.QueryParam("q"), page, size)
	if err != nil {
		return failed(l, "search_products", err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHTTP) CreateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.create")

	actor, err := actorFrom(c)
	if err != nil {
		return failed(l, "create_product", err)
	}
	var req transport.CreateProductRequest
	if err := bind(c, &req); err != nil {
		return failed(l, "create_product", err)
	}
	p, err := h.Svc.CreateProduct(ctx, actor, req)
	if err != nil {
		return failed(l, "create_product", err)
	}
	l.Infow("create_product_success", "product_id", p.ID, "sku", p.SKU)
	return c.JSON(http.StatusCreated, p)
}

func (h *CatalogHTTP) PatchProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.patch")

	actor, err := actorFrom(c)
	if err != nil {
		return failed(l, "patch_product", err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return failed(l, "patch_product", err)
	}
	var req transport.PatchProductRequest
	if err := bind(c, &req); err != nil {
		return failed(l, "patch_product", err)
	}
	p, err := h.Svc.UpdateProduct(ctx, actor, id, req)
	if err != nil {
		return failed(l, "patch_product", err)
	}
	l.Infow("patch_product_success", "product_id", p.ID)
	return c.JSON(http.StatusOK, p)
}

func (h *CatalogHTTP) DeleteProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.delete")

	actor, err := actorFrom(c)
	if err != nil {
		return failed(l, "delete_product", err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return failed(l, "delete_product", err)
	}
	if err := h.Svc.DeleteProduct(ctx, actor, id); err != nil {
		return failed(l, "delete_product", err)
	}
	l.Infow("delete_product_success", "product_id", id)
	return c.NoContent(http.StatusNoContent)
}

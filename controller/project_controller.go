package controller

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/competitiveumar/HopeBridge/ledger"
	"github.com/competitiveumar/HopeBridge/model"
)

type ProjectController struct {
	DB     *gorm.DB
	Redis  *redis.Client
	Ledger *ledger.Service
}

func (pc *ProjectController) List(c *fiber.Ctx) error {
	category := c.Query("category")
	location := c.Query("location")
	status := c.Query("status")
	sort := c.Query("sort")
	filtered := category != "" || location != "" || status != "" || sort != ""

	ctx := c.Context()
	if !filtered {
		if cached := pc.cachedList(ctx); cached != nil {
			return c.JSON(cached)
		}
	}

	q := pc.DB.WithContext(ctx).Model(&model.Project{})
	if category != "" && category != "All" {
		q = q.Where("categories LIKE ?", "%\""+category+"\"%")
	}
	if location != "" && location != "All" {
		q = q.Where("location = ?", location)
	}
	if status != "" && status != "All" {
		q = q.Where("status = ?", status)
	}
	switch sort {
	case "Most Funded":
		q = q.Order("raised DESC")
	case "Most Urgent":
		q = q.Where("status = ?", model.ProjectUrgent).Order("created_at DESC")
	default:
		q = q.Order("created_at DESC")
	}

	var projects []model.Project
	if err := q.Find(&projects).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch projects"})
	}
	if projects == nil {
		projects = []model.Project{}
	}

	if !filtered {
		pc.storeList(ctx, projects)
	}
	return c.JSON(projects)
}

func (pc *ProjectController) Get(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid id"})
	}

	var project model.Project
	if err := pc.DB.WithContext(c.Context()).First(&project, id).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "project not found"})
	}
	return c.JSON(project)
}

// Donate creates a pending donation plus its provider intent and
// returns the client secret the donor confirms with.
func (pc *ProjectController) Donate(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid id"})
	}

	var body struct {
		Amount    decimal.Decimal `json:"amount"`
		Currency  string          `json:"currency"`
		Anonymous bool            `json:"anonymous"`
		Message   string          `json:"message"`
		Email     string          `json:"email"`
		Name      string          `json:"name"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid payload"})
	}

	result, err := pc.Ledger.Donate(c.Context(), ledger.DonateInput{
		ProjectID: uint(id),
		Amount:    body.Amount,
		Currency:  body.Currency,
		Owner:     ownerFrom(c),
		Anonymous: body.Anonymous,
		Message:   body.Message,
		Email:     body.Email,
		DonorName: body.Name,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"client_secret": result.ClientSecret,
		"donation_id":   result.Donation.ID,
	})
}

func (pc *ProjectController) GetAllocation(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid id"})
	}

	var alloc model.FundAllocation
	if err := pc.DB.WithContext(c.Context()).Where("project_id = ?", id).First(&alloc).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "fund allocation not found"})
	}
	return c.JSON(alloc)
}

// SetAllocation upserts the per-project split; the three percentages
// must sum to exactly 100.
func (pc *ProjectController) SetAllocation(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid id"})
	}

	var body struct {
		OperationalCosts decimal.Decimal `json:"operational_costs"`
		DirectAid        decimal.Decimal `json:"direct_aid"`
		EmergencyReserve decimal.Decimal `json:"emergency_reserve"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid payload"})
	}

	alloc := model.FundAllocation{
		ProjectID:        uint(id),
		OperationalCosts: body.OperationalCosts,
		DirectAid:        body.DirectAid,
		EmergencyReserve: body.EmergencyReserve,
	}
	if err := alloc.Validate(); err != nil {
		return fail(c, err)
	}

	db := pc.DB.WithContext(c.Context())
	var existing model.FundAllocation
	if err := db.Where("project_id = ?", id).First(&existing).Error; err == nil {
		alloc.ID = existing.ID
	}
	if err := db.Save(&alloc).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to save fund allocation"})
	}
	return c.Status(201).JSON(alloc)
}

func (pc *ProjectController) cachedList(ctx context.Context) []model.Project {
	if pc.Redis == nil {
		return nil
	}
	cached, err := pc.Redis.Get(ctx, "projects:all").Result()
	if err != nil {
		return nil
	}
	var projects []model.Project
	if json.Unmarshal([]byte(cached), &projects) != nil {
		return nil
	}
	return projects
}

func (pc *ProjectController) storeList(ctx context.Context, projects []model.Project) {
	if pc.Redis == nil {
		return
	}
	js, err := json.Marshal(projects)
	if err != nil {
		return
	}
	pc.Redis.Set(ctx, "projects:all", js, 5*time.Minute)
}

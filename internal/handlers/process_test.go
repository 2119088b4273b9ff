package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/process-tracker-api/internal/constants"
	"github.com/yukikurage/process-tracker-api/internal/dto"
	"github.com/yukikurage/process-tracker-api/internal/middleware"
	"github.com/yukikurage/process-tracker-api/internal/models"
	"github.com/yukikurage/process-tracker-api/internal/repository"
	"github.com/yukikurage/process-tracker-api/internal/services"
	"gorm.io/gorm"
)

// ProcessHandlerTestSuite defines the test suite for ProcessHandler
type ProcessHandlerTestSuite struct {
	suite.Suite
	db             *gorm.DB
	processService *services.ProcessService
	handler        *ProcessHandler
}

// SetupTest runs before each test
func (suite *ProcessHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	suite.db = setupTestDB(suite.T())
	suite.processService = services.NewProcessService(repository.NewProcessRepository(suite.db))
	suite.handler = NewProcessHandler(suite.processService)
}

func (suite *ProcessHandlerTestSuite) createTestUser(username string) *models.User {
	user := &models.User{
		Username:           username,
		Email:              models.StringPtr(username + "@example.com"),
		CommentsEnabled:    true,
		DiscordPrivacyMode: constants.PrivacyModePrivate,
	}
	suite.Require().NoError(suite.db.Create(user).Error)
	return user
}

func (suite *ProcessHandlerTestSuite) createTestProcess(userID uint64, company string, stageNames ...string) *models.Process {
	process := &models.Process{
		UserID:      userID,
		CompanyName: company,
	}
	suite.Require().NoError(suite.db.Create(process).Error)

	for i, name := range stageNames {
		stage := &models.Stage{
			ProcessID: process.ID,
			StageName: name,
			StageDate: time.Date(2024, 3, i+1, 0, 0, 0, 0, time.UTC),
			Order:     i,
		}
		suite.Require().NoError(suite.db.Create(stage).Error)
	}
	return process
}

// Helper function to create authenticated context
func (suite *ProcessHandlerTestSuite) createAuthContext(method, url string, userID uint64) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, url, nil)
	c.Set(constants.ContextKeyUserID, userID)
	return c, w
}

func (suite *ProcessHandlerTestSuite) TestListProcesses_Paginates() {
	user := suite.createTestUser("alice")
	other := suite.createTestUser("bob")
	for i := 0; i < 3; i++ {
		suite.createTestProcess(user.ID, fmt.Sprintf("Company %d", i))
	}
	suite.createTestProcess(other.ID, "Not Mine")

	c, w := suite.createAuthContext(http.MethodGet, "/processes?page=2&limit=2", user.ID)
	suite.handler.ListProcesses(c)

	suite.Equal(http.StatusOK, w.Code)
	var resp dto.ProcessListResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal(2, resp.Page)
	suite.Equal(2, resp.PageSize)
	suite.Equal(int64(3), resp.TotalCount)
	suite.Equal(2, resp.TotalPages)
	suite.Require().Len(resp.Processes, 1)
	suite.Equal(user.ID, resp.Processes[0].UserID)
}

func (suite *ProcessHandlerTestSuite) TestListProcesses_Unauthenticated() {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/processes", nil)

	suite.handler.ListProcesses(c)
	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *ProcessHandlerTestSuite) TestGetProcess_FromContext() {
	user := suite.createTestUser("alice")
	process := suite.createTestProcess(user.ID, "Acme", "Applied", "Interview")

	loaded, err := suite.processService.GetProcess(suite.T().Context(), user.ID, process.ID)
	suite.Require().NoError(err)

	c, w := suite.createAuthContext(http.MethodGet, fmt.Sprintf("/processes/%d", process.ID), user.ID)
	c.Set(middleware.ContextKeyProcess, *loaded)
	suite.handler.GetProcess(c)

	suite.Equal(http.StatusOK, w.Code)
	var resp dto.ProcessDTO
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal("Acme", resp.CompanyName)
	suite.Nil(resp.ShareID)
	suite.Require().Len(resp.Stages, 2)
	suite.Equal("Applied", resp.Stages[0].StageName)
}

func (suite *ProcessHandlerTestSuite) TestGetProcess_MissingContext() {
	c, w := suite.createAuthContext(http.MethodGet, "/processes/1", 1)
	suite.handler.GetProcess(c)
	suite.Equal(http.StatusInternalServerError, w.Code)
}

func (suite *ProcessHandlerTestSuite) TestRequireProcessAccess() {
	owner := suite.createTestUser("alice")
	intruder := suite.createTestUser("mallory")
	process := suite.createTestProcess(owner.ID, "Acme")

	router := gin.New()
	router.GET("/processes/:id", func(c *gin.Context) {
		if id := c.GetHeader("X-Test-User"); id != "" {
			var userID uint64
			fmt.Sscan(id, &userID)
			c.Set(constants.ContextKeyUserID, userID)
		}
		c.Next()
	}, middleware.RequireProcessAccess(suite.processService), suite.handler.GetProcess)

	get := func(path string, userID uint64) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("X-Test-User", fmt.Sprint(userID))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	path := fmt.Sprintf("/processes/%d", process.ID)
	suite.Equal(http.StatusOK, get(path, owner.ID).Code)
	suite.Equal(http.StatusNotFound, get(path, intruder.ID).Code)
	suite.Equal(http.StatusNotFound, get("/processes/99999", owner.ID).Code)
	suite.Equal(http.StatusBadRequest, get("/processes/abc", owner.ID).Code)
}

// TestProcessHandlerTestSuite runs the test suite
func TestProcessHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(ProcessHandlerTestSuite))
}

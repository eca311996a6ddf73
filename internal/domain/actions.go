package domain

// Audit action codes. Failure variants are derived by appending the
// FailedActionSuffix, e.g. ORDER_CREATE_FAILED.
const (
	ActionProductCreate      = "PRODUCT_CREATE"
	ActionProductUpdate      = "PRODUCT_UPDATE"
	ActionProductDelete      = "PRODUCT_DELETE"
	ActionProductStockUpdate = "PRODUCT_STOCK_UPDATE"
	ActionProductPublish     = "PRODUCT_PUBLISH"
	ActionProductUnpublish   = "PRODUCT_UNPUBLISH"

	ActionCategoryCreate = "CATEGORY_CREATE"
	ActionCategoryUpdate = "CATEGORY_UPDATE"
	ActionCategoryDelete = "CATEGORY_DELETE"

	ActionDiscountCreate   = "DISCOUNT_CREATE"
	ActionDiscountUpdate   = "DISCOUNT_UPDATE"
	ActionDiscountDelete   = "DISCOUNT_DELETE"
	ActionDiscountValidate = "DISCOUNT_VALIDATE"
	ActionDiscountApply    = "DISCOUNT_APPLY"

	ActionOrderCreate       = "ORDER_CREATE"
	ActionOrderUpdate       = "ORDER_UPDATE"
	ActionOrderStatusUpdate = "ORDER_STATUS_UPDATE"
	ActionOrderCancel       = "ORDER_CANCEL"

	ActionCustomerCreate = "CUSTOMER_CREATE"
	ActionCustomerUpdate = "CUSTOMER_UPDATE"
	ActionCustomerDelete = "CUSTOMER_DELETE"

	ActionTenantCreate     = "TENANT_CREATE"
	ActionTenantUpdate     = "TENANT_UPDATE"
	ActionTenantActivate   = "TENANT_ACTIVATE"
	ActionTenantDeactivate = "TENANT_DEACTIVATE"

	ActionSettingsCreate = "SETTINGS_CREATE"
	ActionSettingsUpdate = "SETTINGS_UPDATE"
	ActionSettingsDelete = "SETTINGS_DELETE"

	ActionUserLogin        = "USER_LOGIN"
	ActionUserLogout       = "USER_LOGOUT"
	ActionUserRefreshToken = "USER_REFRESH_TOKEN"
	ActionUserCreate       = "USER_CREATE"
	ActionUserUpdate       = "USER_UPDATE"
	ActionUserDelete       = "USER_DELETE"
)

// FailedActionSuffix marks audit entries written for failed operations.
const FailedActionSuffix = "_FAILED"

// Audit resource names.
const (
	ResourceProduct  = "Product"
	ResourceCategory = "Category"
	ResourceDiscount = "Discount"
	ResourceOrder    = "Order"
	ResourceCustomer = "Customer"
	ResourceTenant   = "Tenant"
	ResourceSettings = "Settings"
	ResourceUser     = "User"
)

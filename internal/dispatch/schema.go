package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/fin-ai-tgbot-go/internal/models"
)

// ToolDefs returns the provider-facing schema for every operation the
// dispatcher understands. It lives next to the intent definitions so
// the two cannot drift.
func ToolDefs() []models.ToolDef {
	expenseCategories := enumJSON(models.ExpenseCategories)
	goalCategories := enumJSON(models.GoalCategories)

	return []models.ToolDef{
		{
			Name:        "create_bill",
			Description: "Registra un gasto fijo mensual (factura recurrente). Usa cuando digan 'registra X cada mes el día Y'.",
			Parameters: json.RawMessage(fmt.Sprintf(`{
				"type": "object",
				"properties": {
					"description": {"type": "string", "description": "Descripción del gasto fijo (ej: 'internet', 'luz')"},
					"amount": {"type": "number", "description": "Monto mensual en COP"},
					"category": {"type": "string", "enum": %s, "description": "Categoría del gasto"},
					"day_of_month": {"type": "integer", "description": "Día del mes en que vence (1-31)"}
				},
				"required": ["description", "amount", "day_of_month"]
			}`, expenseCategories)),
		},
		{
			Name:        "pay_bill",
			Description: "Marca una factura como pagada en un período. Usa cuando digan 'pagué X'. Si ya estaba pagada ese mes la operación falla sin duplicar.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"bill_id": {"type": "integer", "description": "ID del gasto fijo a marcar como pagado"},
					"description": {"type": "string", "description": "Nombre del gasto fijo si no se conoce el ID (ej: 'arriendo', 'luz')"},
					"amount": {"type": "number", "description": "Monto pagado. Si se omite, usa el monto de la factura"},
					"month": {"type": "integer", "description": "Mes (1-12). Si se omite, usa el mes actual"},
					"year": {"type": "integer", "description": "Año. Si se omite, usa el año actual"}
				}
			}`),
		},
		{
			Name:        "list_bills",
			Description: "Lista los gastos fijos del mes con su estado de pago. Usa cuando pregunten qué facturas faltan por pagar.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"include_paid": {"type": "boolean", "description": "Incluir también las facturas ya pagadas este mes"}
				}
			}`),
		},
		{
			Name:        "deactivate_bill",
			Description: "Desactiva un gasto fijo sin borrar su historial. Usa cuando digan que ya no tienen ese gasto.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"bill_id": {"type": "integer", "description": "ID del gasto fijo a desactivar"},
					"description": {"type": "string", "description": "Nombre del gasto fijo si no se conoce el ID"}
				}
			}`),
		},
		{
			Name:        "unmark_payment",
			Description: "Quita el pago registrado de una factura en un período. Usa cuando digan que marcaron un pago por error.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"bill_id": {"type": "integer", "description": "ID del gasto fijo"},
					"description": {"type": "string", "description": "Nombre del gasto fijo si no se conoce el ID"},
					"month": {"type": "integer", "description": "Mes (1-12). Si se omite, usa el mes actual"},
					"year": {"type": "integer", "description": "Año. Si se omite, usa el año actual"}
				}
			}`),
		},
		{
			Name:        "add_expense",
			Description: "Registra un nuevo gasto. Usa cuando el usuario mencione que gastó dinero.",
			Parameters: json.RawMessage(fmt.Sprintf(`{
				"type": "object",
				"properties": {
					"amount": {"type": "number", "description": "Monto en COP. Convierte 'k' o 'mil' a números: 20k = 20000"},
					"description": {"type": "string", "description": "Descripción breve del gasto"},
					"category": {"type": "string", "enum": %s, "description": "Categoría del gasto"}
				},
				"required": ["amount", "description"]
			}`, expenseCategories)),
		},
		{
			Name:        "list_expenses",
			Description: "Obtiene los gastos de un mes específico. Si no se especifica, muestra el mes actual.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"month": {"type": "integer", "description": "Mes (1-12). Si se omite, usa el mes actual"},
					"year": {"type": "integer", "description": "Año (ej: 2026). Si se omite, usa el año actual"},
					"category": {"type": "string", "description": "Filtrar por una categoría"}
				}
			}`),
		},
		{
			Name:        "summarize_expenses",
			Description: "Resume los gastos de un mes por categoría, de mayor a menor. Usa cuando pregunten en qué gastan más.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"month": {"type": "integer", "description": "Mes (1-12). Si se omite, usa el mes actual"},
					"year": {"type": "integer", "description": "Año. Si se omite, usa el año actual"}
				}
			}`),
		},
		{
			Name:        "add_income",
			Description: "Registra un ingreso del mes. El salario se reemplaza si ya existe para ese mes; los ingresos extra se suman.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"amount": {"type": "number", "description": "Monto en COP"},
					"kind": {"type": "string", "enum": ["salary", "extra"], "description": "salary para el sueldo mensual, extra para ingresos adicionales"},
					"month": {"type": "integer", "description": "Mes (1-12). Si se omite, usa el mes actual"},
					"year": {"type": "integer", "description": "Año. Si se omite, usa el año actual"},
					"description": {"type": "string", "description": "Descripción del ingreso (ej: 'freelance')"}
				},
				"required": ["amount", "kind"]
			}`),
		},
		{
			Name:        "summarize_income",
			Description: "Resume los ingresos de un mes: salario, extras y total.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"month": {"type": "integer", "description": "Mes (1-12). Si se omite, usa el mes actual"},
					"year": {"type": "integer", "description": "Año. Si se omite, usa el año actual"}
				}
			}`),
		},
		{
			Name:        "create_goal",
			Description: "Crea una meta de ahorro. Usa cuando digan 'quiero ahorrar X para Y'.",
			Parameters: json.RawMessage(fmt.Sprintf(`{
				"type": "object",
				"properties": {
					"name": {"type": "string", "description": "Nombre de la meta (ej: 'viaje a Cartagena')"},
					"target_amount": {"type": "number", "description": "Monto objetivo en COP"},
					"deadline": {"type": "string", "description": "Fecha límite en formato YYYY-MM-DD"},
					"category": {"type": "string", "enum": %s, "description": "Categoría de la meta"}
				},
				"required": ["name", "target_amount"]
			}`, goalCategories)),
		},
		{
			Name:        "contribute_goal",
			Description: "Abona dinero a una meta de ahorro activa. Usa cuando digan 'abona X a la meta Y'.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"goal_id": {"type": "integer", "description": "ID de la meta"},
					"name": {"type": "string", "description": "Nombre de la meta si no se conoce el ID"},
					"amount": {"type": "number", "description": "Monto a abonar en COP"},
					"note": {"type": "string", "description": "Nota opcional del abono"}
				},
				"required": ["amount"]
			}`),
		},
		{
			Name:        "list_goals",
			Description: "Lista las metas de ahorro activas con su progreso.",
			Parameters:  json.RawMessage(`{"type": "object", "properties": {}}`),
		},
		{
			Name:        "project_spending",
			Description: "Proyecta el gasto del próximo mes con el promedio de los últimos meses y el ritmo del mes actual. Usa cuando pregunten cuánto van a gastar.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"months": {"type": "integer", "description": "Meses de historial a promediar (1-12). Si se omite, usa 3"}
				}
			}`),
		},
		{
			Name:        "compare_months",
			Description: "Compara gastos entre dos meses. Muestra diferencias y análisis por categorías.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"month1": {"type": "integer", "description": "Primer mes (1-12)"},
					"year1": {"type": "integer", "description": "Primer año"},
					"month2": {"type": "integer", "description": "Segundo mes (1-12)"},
					"year2": {"type": "integer", "description": "Segundo año"}
				},
				"required": ["month1", "year1", "month2", "year2"]
			}`),
		},
		{
			Name:        "get_insights",
			Description: "Genera el análisis del mes: categoría principal, comparación con el mes anterior, facturas pendientes y tasa de ahorro.",
			Parameters:  json.RawMessage(`{"type": "object", "properties": {}}`),
		},
		{
			Name:        "create_reminder",
			Description: "Programa un recordatorio único. Usa cuando digan 'recuérdame X el día Y a las Z'.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"message": {"type": "string", "description": "Texto del recordatorio"},
					"due_at": {"type": "string", "description": "Momento de envío: RFC3339 o 'YYYY-MM-DD HH:MM' en hora local. Debe ser futuro"}
				},
				"required": ["message", "due_at"]
			}`),
		},
		{
			Name:        "list_reminders",
			Description: "Lista los recordatorios pendientes.",
			Parameters:  json.RawMessage(`{"type": "object", "properties": {}}`),
		},
	}
}

// enumJSON renders a category list as a JSON array literal so schemas
// stay in sync with the model definitions.
func enumJSON(values []string) string {
	data, _ := json.Marshal(values)
	return string(data)
}

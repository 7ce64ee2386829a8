package catalog

// Geographic catalog of the tax authority: departments and their districts.
// Codes follow the DGEEC numbering used by the electronic-invoicing system.
// The first district of each department is its primary district, used when
// the client's city text matches nothing.
var defaultDepartments = []Department{
	{Code: 1, Name: "Capital", Districts: []District{
		{Code: 1, Name: "Asunción"},
	}},
	{Code: 2, Name: "San Pedro", Districts: []District{
		{Code: 20, Name: "San Pedro del Ycuamandyyú"},
		{Code: 23, Name: "San Estanislao"},
		{Code: 26, Name: "Guayaibí"},
	}},
	{Code: 3, Name: "Cordillera", Districts: []District{
		{Code: 40, Name: "Caacupé"},
		{Code: 44, Name: "Eusebio Ayala"},
		{Code: 52, Name: "Tobatí"},
	}},
	{Code: 4, Name: "Guairá", Districts: []District{
		{Code: 60, Name: "Villarrica"},
		{Code: 63, Name: "Colonia Independencia"},
	}},
	{Code: 5, Name: "Caaguazú", Districts: []District{
		{Code: 80, Name: "Coronel Oviedo"},
		{Code: 81, Name: "Caaguazú"},
		{Code: 92, Name: "Doctor Juan Eulogio Estigarribia"},
	}},
	{Code: 6, Name: "Caazapá", Districts: []District{
		{Code: 100, Name: "Caazapá"},
		{Code: 107, Name: "San Juan Nepomuceno"},
	}},
	{Code: 7, Name: "Itapúa", Districts: []District{
		{Code: 114, Name: "Encarnación"},
		{Code: 121, Name: "Hohenau"},
		{Code: 132, Name: "Obligado"},
	}},
	{Code: 8, Name: "Misiones", Districts: []District{
		{Code: 145, Name: "San Juan Bautista"},
		{Code: 147, Name: "Ayolas"},
		{Code: 151, Name: "Santa Rosa"},
	}},
	{Code: 9, Name: "Paraguarí", Districts: []District{
		{Code: 156, Name: "Paraguarí"},
		{Code: 160, Name: "Carapeguá"},
		{Code: 172, Name: "Yaguarón"},
	}},
	{Code: 10, Name: "Alto Paraná", Districts: []District{
		{Code: 173, Name: "Ciudad del Este"},
		{Code: 177, Name: "Hernandarias"},
		{Code: 184, Name: "Presidente Franco"},
		{Code: 186, Name: "Minga Guazú"},
	}},
	{Code: 11, Name: "Central", Districts: []District{
		{Code: 194, Name: "Areguá"},
		{Code: 196, Name: "Fernando de la Mora"},
		{Code: 198, Name: "Lambaré"},
		{Code: 199, Name: "Limpio"},
		{Code: 200, Name: "Luque"},
		{Code: 201, Name: "Mariano Roque Alonso"},
		{Code: 204, Name: "San Lorenzo"},
		{Code: 206, Name: "Villa Elisa"},
		{Code: 208, Name: "Capiatá"},
		{Code: 210, Name: "Ñemby"},
		{Code: 211, Name: "San Antonio"},
	}},
	{Code: 12, Name: "Ñeembucú", Districts: []District{
		{Code: 213, Name: "Pilar"},
		{Code: 216, Name: "Cerrito"},
	}},
	{Code: 13, Name: "Amambay", Districts: []District{
		{Code: 229, Name: "Pedro Juan Caballero"},
		{Code: 230, Name: "Bella Vista"},
	}},
	{Code: 14, Name: "Canindeyú", Districts: []District{
		{Code: 233, Name: "Salto del Guairá"},
		{Code: 236, Name: "Curuguaty"},
	}},
	{Code: 15, Name: "Presidente Hayes", Districts: []District{
		{Code: 244, Name: "Villa Hayes"},
		{Code: 245, Name: "Benjamín Aceval"},
	}},
	{Code: 16, Name: "Alto Paraguay", Districts: []District{
		{Code: 251, Name: "Fuerte Olimpo"},
		{Code: 253, Name: "Bahía Negra"},
	}},
	{Code: 17, Name: "Boquerón", Districts: []District{
		{Code: 257, Name: "Filadelfia"},
		{Code: 258, Name: "Loma Plata"},
		{Code: 259, Name: "Mariscal Estigarribia"},
	}},
}
